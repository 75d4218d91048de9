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

// Package slotset tracks slot occupancy with machine words.  A set bit
// means the slot is free, so a word of all ones is fully free and a
// word of zero is fully occupied, and the first free slot falls out of
// a single hardware bit scan.
//
// A Group always spans GroupSlots slots no matter how wide the
// underlying words are.  The word width and the scan direction are
// fixed per Layout, chosen once at pool creation.
package slotset

import (
	"math/bits"

	"github.com/prophile/poolalloc/pkg/common/poolerr"
)

// GroupSlots is the number of slots in a Group.  It is a property of
// the pool geometry, not of the word width: narrower words just mean
// more words per group.
const GroupSlots = 64

// Order is the direction a word is scanned for a free slot.
type Order uint8

const (
	// OrderLowFirst maps slot index 0 to the least significant bit
	// and scans with a trailing-zero count.
	OrderLowFirst Order = iota
	// OrderHighFirst maps slot index 0 to the most significant bit
	// and scans with a leading-zero count.
	OrderHighFirst
)

func (o Order) String() string {
	switch o {
	case OrderLowFirst:
		return "low-first"
	case OrderHighFirst:
		return "high-first"
	}
	return "unknown"
}

// ParseOrder parses the textual form used in configuration files.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "low-first", "":
		return OrderLowFirst, nil
	case "high-first":
		return OrderHighFirst, nil
	}
	return 0, poolerr.NewInvalidArg("scan order", s)
}

// Layout fixes the word width and scan order of a group.  Both
// conventions return the lowest free slot index; they differ only in
// which physical bit a slot index occupies.
type Layout struct {
	wordBits int
	order    Order
}

// NewLayout builds a layout for the given word width in bits.  The
// width must divide GroupSlots, so 8, 16, 32 or 64.
func NewLayout(wordBits int, order Order) (Layout, error) {
	switch wordBits {
	case 8, 16, 32, 64:
	default:
		return Layout{}, poolerr.NewInvalidArg("word bits", wordBits)
	}
	if order != OrderLowFirst && order != OrderHighFirst {
		return Layout{}, poolerr.NewInvalidArg("scan order", order)
	}
	return Layout{wordBits: wordBits, order: order}, nil
}

// DefaultLayout is native 64 bit words scanned low first.
func DefaultLayout() Layout {
	return Layout{wordBits: 64, order: OrderLowFirst}
}

func (l Layout) WordBits() int { return l.wordBits }

func (l Layout) Order() Order { return l.order }

// Words is the number of words per group.
func (l Layout) Words() int { return GroupSlots / l.wordBits }

// wordMask covers the low wordBits bits of an extracted word.
func (l Layout) wordMask() uint64 {
	return ^uint64(0) >> (64 - l.wordBits)
}

// findFreeWord returns the index of the first free slot in a word.
// The word must not be full.
func (l Layout) findFreeWord(w uint64) int {
	if l.order == OrderLowFirst {
		return bits.TrailingZeros64(w)
	}
	return l.wordBits - bits.Len64(w)
}

// bitMask is the in-word mask of slot index bit under the layout's
// order.
func (l Layout) bitMask(bit int) uint64 {
	if l.order == OrderLowFirst {
		return uint64(1) << bit
	}
	return uint64(1) << (l.wordBits - 1 - bit)
}

// slotMask positions the slot's bit inside the packed group.  Slot idx
// lives in word idx/wordBits at in-word position idx%wordBits.
func (l Layout) slotMask(idx int) uint64 {
	if idx < 0 || idx >= GroupSlots {
		panic(poolerr.NewInternalError("slot index %d out of range", idx))
	}
	word, bit := idx/l.wordBits, idx%l.wordBits
	return l.bitMask(bit) << (word * l.wordBits)
}
