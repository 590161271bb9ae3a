// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package guard converts panics raised by a unit of work into ordinary values.
//
// Code that signals failure by panicking can be consumed by callers which
// expect failures to be returned instead of unwound through the stack:
//
//	f := guard.Protect(func() {
//	    decoder.MustDecode(buf)
//	})
//	if f != nil {
//	    return f.Err()
//	}
//
// # What is captured
//
// Only panics which can be stopped by recover are captured. This includes
// runtime errors such as nil pointer dereferences and integer division by zero.
// The following are never intercepted and behave exactly as they would
// without [Protect]:
//
//   - runtime.Goexit, which is not a panic
//   - fatal runtime errors (concurrent map writes, stack exhaustion, out of memory)
//   - os.Exit and process signals
//
// [Protect] does not retry, log or compensate for the unit of work. Opt-in
// tracing support lives in the guardotel package.
package guard
