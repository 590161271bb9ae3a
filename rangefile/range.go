// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rangefile

import "fmt"

// Range is the half-open byte interval [Start, End).
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of bytes in r.
func (r Range) Len() int64 {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether r covers no bytes.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Contains reports whether o lies entirely within r.
// An empty o is contained by every range.
func (r Range) Contains(o Range) bool {
	if o.Empty() {
		return true
	}
	return r.Start <= o.Start && o.End <= r.End
}

// String implements the [fmt.Stringer] interface.
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Chunk is a piece of a requested range which is either
// already cached locally or still needs to be fetched.
type Chunk struct {
	Range
	Cached bool
}

// insertRange merges r into the sorted, non-overlapping list rs.
// Ranges which overlap or touch r are coalesced with it.
func insertRange(rs []Range, r Range) []Range {
	out := make([]Range, 0, len(rs)+1)

	i := 0
	for ; i < len(rs) && rs[i].End < r.Start; i++ {
		out = append(out, rs[i])
	}
	for ; i < len(rs) && rs[i].Start <= r.End; i++ {
		r.Start = min(r.Start, rs[i].Start)
		r.End = max(r.End, rs[i].End)
	}
	out = append(out, r)
	return append(out, rs[i:]...)
}

// planChunks splits r into an ordered list of cached and uncached
// chunks which exactly cover r.
func planChunks(rs []Range, r Range) []Chunk {
	if r.Empty() {
		return nil
	}

	var chunks []Chunk
	cur := r.Start
	for _, c := range rs {
		if c.End <= cur {
			continue
		}
		if c.Start >= r.End {
			break
		}
		if c.Start > cur {
			chunks = append(chunks, Chunk{Range: Range{Start: cur, End: c.Start}})
			cur = c.Start
		}

		end := min(c.End, r.End)
		chunks = append(chunks, Chunk{Range: Range{Start: cur, End: end}, Cached: true})
		cur = end
		if cur >= r.End {
			break
		}
	}
	if cur < r.End {
		chunks = append(chunks, Chunk{Range: Range{Start: cur, End: r.End}})
	}
	return chunks
}
