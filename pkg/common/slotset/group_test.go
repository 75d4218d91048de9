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
	"fmt"
	"math/rand"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/require"
)

func allLayouts(t *testing.T) []Layout {
	var ls []Layout
	for _, w := range []int{8, 16, 32, 64} {
		for _, o := range []Order{OrderLowFirst, OrderHighFirst} {
			l, err := NewLayout(w, o)
			require.NoError(t, err)
			ls = append(ls, l)
		}
	}
	return ls
}

func layoutName(l Layout) string {
	return fmt.Sprintf("w%d-%s", l.WordBits(), l.Order())
}

func TestGroupFillAndDrain(t *testing.T) {
	for _, l := range allLayouts(t) {
		l := l
		t.Run(layoutName(l), func(t *testing.T) {
			g := l.Empty()
			require.True(t, l.IsEmpty(g))
			require.False(t, l.IsFull(g))
			require.Equal(t, GroupSlots, l.FreeCount(g))

			// both scan orders hand out the lowest free index
			for i := 0; i < GroupSlots; i++ {
				require.False(t, l.IsFull(g))
				idx := l.FindFree(g)
				require.Equal(t, i, idx)
				require.True(t, l.IsFree(g, idx))
				g = l.Mark(g, idx)
				require.False(t, l.IsFree(g, idx))
				require.Equal(t, GroupSlots-i-1, l.FreeCount(g))
			}
			require.True(t, l.IsFull(g))
			require.False(t, l.IsEmpty(g))
			require.Equal(t, -1, l.FindFree(g))

			for i := GroupSlots - 1; i >= 0; i-- {
				g = l.Unmark(g, i)
				require.True(t, l.IsFree(g, i))
				require.Equal(t, i, l.FindFree(g))
			}
			require.True(t, l.IsEmpty(g))
		})
	}
}

func TestGroupReuseLowestIndex(t *testing.T) {
	for _, l := range allLayouts(t) {
		l := l
		t.Run(layoutName(l), func(t *testing.T) {
			g := l.Empty()
			for i := 0; i < GroupSlots; i++ {
				g = l.Mark(g, i)
			}

			g = l.Unmark(g, 42)
			g = l.Unmark(g, 3)
			g = l.Unmark(g, 17)

			require.Equal(t, 3, l.FindFree(g))
			g = l.Mark(g, 3)
			require.Equal(t, 17, l.FindFree(g))
			g = l.Mark(g, 17)
			require.Equal(t, 42, l.FindFree(g))
			g = l.Mark(g, 42)
			require.True(t, l.IsFull(g))
		})
	}
}

// The logical slot sequence is order independent; what differs is the
// physical bit a slot occupies.
func TestGroupPhysicalMapping(t *testing.T) {
	low64, err := NewLayout(64, OrderLowFirst)
	require.NoError(t, err)
	require.Equal(t, ^uint64(1), uint64(low64.Mark(low64.Empty(), 0)))
	require.Equal(t, ^(uint64(1) << 63), uint64(low64.Mark(low64.Empty(), 63)))

	high64, err := NewLayout(64, OrderHighFirst)
	require.NoError(t, err)
	require.Equal(t, ^(uint64(1) << 63), uint64(high64.Mark(high64.Empty(), 0)))
	require.Equal(t, ^uint64(1), uint64(high64.Mark(high64.Empty(), 63)))

	high8, err := NewLayout(8, OrderHighFirst)
	require.NoError(t, err)
	require.Equal(t, ^(uint64(1) << 7), uint64(high8.Mark(high8.Empty(), 0)))
	require.Equal(t, ^(uint64(1) << 15), uint64(high8.Mark(high8.Empty(), 8)))
	require.Equal(t, ^(uint64(1) << 56), uint64(high8.Mark(high8.Empty(), 63)))
}

// Random mark/unmark churn cross-checked against an independent bitset
// model, one model bit per free slot.
func TestGroupRandomChurn(t *testing.T) {
	for _, l := range allLayouts(t) {
		l := l
		t.Run(layoutName(l), func(t *testing.T) {
			r := rand.New(rand.NewSource(0x706f6f6c))
			model := bitset.New(GroupSlots)
			for i := uint(0); i < GroupSlots; i++ {
				model.Set(i)
			}
			g := l.Empty()

			for iter := 0; iter < 4096; iter++ {
				switch r.Intn(3) {
				case 0:
					if l.IsFull(g) {
						require.Equal(t, -1, l.FindFree(g))
						continue
					}
					idx := l.FindFree(g)
					want, ok := model.NextSet(0)
					require.True(t, ok)
					require.Equal(t, int(want), idx)
					g = l.Mark(g, idx)
					model.Clear(uint(idx))
				case 1:
					idx := r.Intn(GroupSlots)
					if !model.Test(uint(idx)) {
						g = l.Unmark(g, idx)
						model.Set(uint(idx))
					}
				case 2:
					idx := r.Intn(GroupSlots)
					require.Equal(t, model.Test(uint(idx)), l.IsFree(g, idx))
				}
				require.Equal(t, int(model.Count()), l.FreeCount(g))
			}
		})
	}
}
