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

package slotset

import (
	"math/bits"
)

// Group packs the occupancy words of GroupSlots slots into one uint64,
// so the footprint stays 8 bytes for every word width.  Word i occupies
// bits [i*wordBits, (i+1)*wordBits).  All operations are pure values;
// Mark and Unmark return the updated group.
type Group uint64

// Empty returns a group with every slot free.
func (l Layout) Empty() Group {
	return Group(^uint64(0))
}

// IsFull reports whether no slot is free, which is every word being
// all zero.
func (l Layout) IsFull(g Group) bool {
	return g == 0
}

// IsEmpty reports whether every slot is free.
func (l Layout) IsEmpty(g Group) bool {
	return g == Group(^uint64(0))
}

// FreeCount is the number of free slots.
func (l Layout) FreeCount(g Group) int {
	return bits.OnesCount64(uint64(g))
}

// FindFree returns the index of the first free slot: the first word in
// ascending word order with a free bit, scanned in the layout's
// direction, offset by wordIndex*wordBits.  Returns -1 when the group
// is full; callers are expected to check IsFull first.
func (l Layout) FindFree(g Group) int {
	for i := 0; i < l.Words(); i++ {
		w := (uint64(g) >> (i * l.wordBits)) & l.wordMask()
		if w != 0 {
			return i*l.wordBits + l.findFreeWord(w)
		}
	}
	return -1
}

// IsFree reports whether slot idx is free.
func (l Layout) IsFree(g Group, idx int) bool {
	return uint64(g)&l.slotMask(idx) != 0
}

// Mark occupies slot idx.
func (l Layout) Mark(g Group, idx int) Group {
	return g &^ Group(l.slotMask(idx))
}

// Unmark frees slot idx.
func (l Layout) Unmark(g Group, idx int) Group {
	return g | Group(l.slotMask(idx))
}
