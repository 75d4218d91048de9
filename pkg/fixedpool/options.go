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
	"github.com/prophile/poolalloc/pkg/common/malloc"
	"github.com/prophile/poolalloc/pkg/common/slotset"
)

type poolOptions struct {
	layout     slotset.Layout
	alloc      malloc.Allocator
	extraBytes int
}

// Option configures New.
type Option func(*poolOptions)

// WithAllocator sets the segment buffer source.  Nil keeps the
// default.
func WithAllocator(a malloc.Allocator) Option {
	return func(o *poolOptions) {
		if a != nil {
			o.alloc = a
		}
	}
}

// WithLayout sets the occupancy word width and scan order.  The
// layout is fixed for the life of the pool and shared by every
// segment.
func WithLayout(l slotset.Layout) Option {
	return func(o *poolOptions) {
		o.layout = l
	}
}

// WithExtraBytes reserves n bytes of caller data after the head
// segment's slots.  The region is allocated and released together
// with the head segment and is reachable through ExtraData.
func WithExtraBytes(n int) Option {
	return func(o *poolOptions) {
		o.extraBytes = n
	}
}
