// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mathutil holds the power-of-two arithmetic behind slot and
// size computations.  Sizes are rounded up to powers of two so that
// offsets can be computed with shifts instead of multiplications.
package mathutil

import (
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// IsPow2 reports whether x is a power of two.  Zero is not one.
func IsPow2[T constraints.Unsigned](x T) bool {
	return x != 0 && x&(x-1) == 0
}

// NextPow2 returns the smallest power of two that is >= x.  Zero is a
// rejected input, as is any x whose rounding does not fit in T.
func NextPow2[T constraints.Unsigned](x T) T {
	if x == 0 {
		panic("next power of two of zero")
	}
	if IsPow2(x) {
		return x
	}
	p := T(1) << bits.Len64(uint64(x))
	if p == 0 {
		panic(fmt.Sprintf("next power of two of %d overflows", uint64(x)))
	}
	return p
}

// Log2 returns floor(log2(x)).  For power-of-two x this is the exact
// exponent, which is what the shift based address math stores.
func Log2[T constraints.Unsigned](x T) int {
	if x == 0 {
		panic("log2 of zero")
	}
	return bits.Len64(uint64(x)) - 1
}
