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

// Package malloc is the raw buffer source behind pool segments.  Pools
// never touch the heap directly; they go through an Allocator, which
// keeps the backing store swappable and failures observable.
package malloc

import (
	"github.com/prophile/poolalloc/pkg/common/poolerr"
)

// Allocator obtains and releases whole segment buffers.  Release must
// be called with the exact slice a successful Allocate returned.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Release(buf []byte)
}

// GoAllocator hands out garbage collected buffers.  Release only drops
// the reference and lets the GC do the rest.
type GoAllocator struct{}

var _ Allocator = GoAllocator{}

func (GoAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, poolerr.NewInvalidSize("non-positive allocation size %d", size)
	}
	return make([]byte, size), nil
}

func (GoAllocator) Release(buf []byte) {
}

var defaultAllocator Allocator = GoAllocator{}

// Default returns the process wide default allocator.
func Default() Allocator {
	return defaultAllocator
}
