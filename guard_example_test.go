// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package guard

import (
	"errors"
	"fmt"
)

func ExampleProtect() {
	f := Protect(func() {
		fmt.Println("hello from work")
	})
	fmt.Println(f == nil)

	// Output:
	// hello from work
	// true
}

func ExampleProtect_panic() {
	f := Protect(func() {
		panic("divide by zero")
	})
	if f == nil {
		return
	}
	fmt.Println(f.Kind())
	fmt.Println(f.Reason())

	// Output:
	// value
	// divide by zero
}

var errMalformed = errors.New("malformed input")

func mustParse(s string) int {
	if s == "" {
		panic(errMalformed)
	}
	return len(s)
}

func ExampleFailure_Err() {
	parse := func(s string) (n int, err error) {
		f := Protect(func() {
			n = mustParse(s)
		})
		return n, f.Err()
	}

	n, err := parse("abc")
	fmt.Println(n, err)

	_, err = parse("")
	fmt.Println(errors.Is(err, errMalformed))
	fmt.Println(err)

	// Output:
	// 3 <nil>
	// true
	// recovered from panic: malformed input
}
