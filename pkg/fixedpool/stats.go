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

package fixedpool

import (
	"sync/atomic"
)

// Stats are the live counters of one pool.  The owning goroutine
// writes them; anyone may read.
type Stats struct {
	NumAlloc      atomic.Int64
	NumFree       atomic.Int64
	NumGrow       atomic.Int64
	NumAllocBytes atomic.Int64
	NumFreeBytes  atomic.Int64
	NumCurrBytes  atomic.Int64
	HighWaterMark atomic.Int64
}

// RecordAlloc updates the counters for one slot handed out.
func (s *Stats) RecordAlloc(sz int64) {
	s.NumAlloc.Add(1)
	s.NumAllocBytes.Add(sz)
	curr := s.NumCurrBytes.Add(sz)
	for {
		hwm := s.HighWaterMark.Load()
		if curr <= hwm {
			break
		}
		if s.HighWaterMark.CompareAndSwap(hwm, curr) {
			break
		}
	}
}

// RecordFree updates the counters for one slot returned.
func (s *Stats) RecordFree(sz int64) {
	s.NumFree.Add(1)
	s.NumFreeBytes.Add(sz)
	s.NumCurrBytes.Add(-sz)
}
