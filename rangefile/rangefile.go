// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rangefile provides a cache file which is filled in by byte ranges.
//
// Every call into the underlying [Backend] runs inside [guard.Protect] so a
// backend which panics, for example one backed by a memory mapping, surfaces
// as an [*IOError] instead of crashing the caller.
package rangefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/z5labs/guard"
	"github.com/z5labs/guard/guardotel"
	"github.com/z5labs/guard/internal/try"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/guard/rangefile"

// Backend is the random access storage behind a [File].
type Backend interface {
	io.ReaderAt
	io.WriterAt
}

var (
	// ErrNotCached is returned when reading a range which has not been fully written.
	ErrNotCached = errors.New("rangefile: range not cached")

	// ErrInvalidRange is returned for ranges with a negative offset or
	// an end past the largest int64 offset.
	ErrInvalidRange = errors.New("rangefile: invalid range")
)

// IOError is returned when the [Backend] fails or panics.
type IOError struct {
	Op    string
	Range Range
	Cause error
}

// Error implements the [error] interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("rangefile: failed to %s %s: %s", e.Op, e.Range, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e *IOError) Unwrap() error {
	return e.Cause
}

type options struct {
	log           *slog.Logger
	tp            trace.TracerProvider
	contentLength int64
}

// Option helps configure a [File].
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(opts *options) {
	f(opts)
}

// Logger configures the logger used to report backend failures.
func Logger(log *slog.Logger) Option {
	return optionFunc(func(o *options) {
		o.log = log
	})
}

// TracerProvider configures where spans are created. Defaults to the
// global trace.TracerProvider.
func TracerProvider(tp trace.TracerProvider) Option {
	return optionFunc(func(o *options) {
		o.tp = tp
	})
}

// ContentLength sets the total size of the cached resource, if known.
func ContentLength(n int64) Option {
	return optionFunc(func(o *options) {
		o.contentLength = n
	})
}

// File tracks which byte ranges of a resource have been written to its
// [Backend]. It is safe for concurrent use.
type File struct {
	backend Backend
	log     *slog.Logger
	tracer  trace.Tracer

	mu            sync.Mutex
	contentLength int64
	ranges        []Range
}

// New returns a File with nothing cached yet.
func New(b Backend, opts ...Option) *File {
	o := &options{
		log: slog.New(slog.DiscardHandler),
		tp:  otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt.applyOption(o)
	}

	return &File{
		backend:       b,
		log:           o.log,
		tracer:        o.tp.Tracer(instrumentationName),
		contentLength: o.contentLength,
	}
}

// Open opens, creating if needed, the file at path as the [Backend].
func Open(path string, opts ...Option) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return New(f, opts...), nil
}

// ContentLength returns the total size of the cached resource
// or zero if it is not known yet.
func (f *File) ContentLength() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentLength
}

// SetContentLength records the total size of the cached resource.
func (f *File) SetContentLength(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentLength = n
}

// Ranges returns the cached ranges in ascending order.
func (f *File) Ranges() []Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ranges)
}

// Cached reports whether every byte of r has been written.
func (f *File) Cached(r Range) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached(r)
}

func (f *File) cached(r Range) bool {
	if r.Empty() {
		return true
	}
	for _, c := range f.ranges {
		if c.Contains(r) {
			return true
		}
	}
	return false
}

// Complete reports whether the whole resource is cached.
func (f *File) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.contentLength <= 0 || len(f.ranges) != 1 {
		return false
	}
	return f.ranges[0] == Range{Start: 0, End: f.contentLength}
}

// Chunks splits r into cached and uncached pieces, in order. If the
// content length is known r is clamped to it first.
func (f *File) Chunks(r Range) []Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return planChunks(f.ranges, f.clamp(r))
}

func (f *File) clamp(r Range) Range {
	if f.contentLength > 0 && r.End > f.contentLength {
		r.End = f.contentLength
	}
	return r
}

// WriteRange writes p at offset off and marks the range as cached.
// The range is only marked once the backend write succeeds.
func (f *File) WriteRange(ctx context.Context, off int64, p []byte) error {
	r := Range{Start: off, End: off + int64(len(p))}

	spanCtx, span := f.tracer.Start(ctx, "rangefile.WriteRange", trace.WithAttributes(
		attribute.Int64("rangefile.range.start", r.Start),
		attribute.Int64("rangefile.range.end", r.End),
	))
	defer span.End()

	// r.End wraps negative when off+len(p) overflows int64.
	if off < 0 || r.End < r.Start {
		return &IOError{Op: "write", Range: r, Cause: ErrInvalidRange}
	}
	if len(p) == 0 {
		return nil
	}

	var (
		n   int
		err error
	)
	failure := guard.Protect(func() {
		n, err = f.backend.WriteAt(p, off)
	})
	if failure != nil {
		return f.fail(spanCtx, span, "write", r, failure)
	}
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return f.fail(spanCtx, span, "write", r, err)
	}

	f.mu.Lock()
	f.ranges = insertRange(f.ranges, r)
	f.mu.Unlock()
	return nil
}

// ReadRange reads the bytes in r. If the content length is known r is
// clamped to it first. [ErrNotCached] is returned if any part of r has
// not been written yet.
func (f *File) ReadRange(ctx context.Context, r Range) ([]byte, error) {
	spanCtx, span := f.tracer.Start(ctx, "rangefile.ReadRange", trace.WithAttributes(
		attribute.Int64("rangefile.range.start", r.Start),
		attribute.Int64("rangefile.range.end", r.End),
	))
	defer span.End()

	if r.Start < 0 {
		return nil, &IOError{Op: "read", Range: r, Cause: ErrInvalidRange}
	}

	f.mu.Lock()
	r = f.clamp(r)
	ok := f.cached(r)
	f.mu.Unlock()
	if !ok {
		return nil, ErrNotCached
	}
	if r.Empty() {
		return []byte{}, nil
	}

	var (
		n   int
		err error
	)
	buf := make([]byte, r.Len())
	failure := guard.Protect(func() {
		n, err = f.backend.ReadAt(buf, r.Start)
	})
	if failure != nil {
		return nil, f.fail(spanCtx, span, "read", r, failure)
	}
	if errors.Is(err, io.EOF) && n == len(buf) {
		err = nil
	}
	if err == nil && n < len(buf) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, f.fail(spanCtx, span, "read", r, err)
	}
	return buf, nil
}

func (f *File) fail(ctx context.Context, span trace.Span, op string, r Range, cause error) error {
	failure, panicked := guard.AsFailure(cause)
	if panicked {
		guardotel.Record(span, failure)
		f.log.ErrorContext(
			ctx,
			"backend panicked",
			slog.String("op", op),
			slog.String("range", r.String()),
			slog.Any("failure", failure),
		)
	} else {
		span.RecordError(cause)
		span.SetStatus(codes.Error, cause.Error())
		f.log.ErrorContext(
			ctx,
			"backend failed",
			slog.String("op", op),
			slog.String("range", r.String()),
			slog.Any("error", cause),
		)
	}
	return &IOError{Op: op, Range: r, Cause: cause}
}

type index struct {
	ContentLength int64   `json:"content_length"`
	Ranges        []Range `json:"ranges"`
}

// SaveIndex writes the content length and cached ranges as JSON.
func (f *File) SaveIndex(w io.Writer) error {
	f.mu.Lock()
	idx := index{
		ContentLength: f.contentLength,
		Ranges:        slices.Clone(f.ranges),
	}
	f.mu.Unlock()

	return json.NewEncoder(w).Encode(idx)
}

// LoadIndex replaces the content length and cached ranges with ones
// previously written by [File.SaveIndex]. Loaded ranges are normalized
// so overlapping entries are merged and empty entries dropped.
func (f *File) LoadIndex(r io.Reader) error {
	var idx index
	err := json.NewDecoder(r).Decode(&idx)
	if err != nil {
		return err
	}

	var ranges []Range
	for _, rr := range idx.Ranges {
		if rr.Start < 0 {
			return ErrInvalidRange
		}
		if rr.Empty() {
			continue
		}
		ranges = insertRange(ranges, rr)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentLength = idx.ContentLength
	f.ranges = ranges
	return nil
}

// Close closes the [Backend] if it implements io.Closer.
func (f *File) Close() (err error) {
	defer try.Close(&err, f.backend)
	return nil
}
