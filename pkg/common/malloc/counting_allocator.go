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

package malloc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/prophile/poolalloc/pkg/common/poolerr"
)

// CountingAllocator wraps an upstream allocator with exact accounting.
// Every live buffer is tracked by base address, so releasing a buffer
// twice, or one that was never allocated here, is caught immediately.
type CountingAllocator struct {
	upstream Allocator

	numAllocate atomic.Int64
	numRelease  atomic.Int64
	inuseBytes  atomic.Int64

	mu   sync.Mutex
	live map[uintptr]int // base address -> buffer length
}

var _ Allocator = new(CountingAllocator)

// NewCountingAllocator wraps upstream; nil means the default
// allocator.
func NewCountingAllocator(upstream Allocator) *CountingAllocator {
	if upstream == nil {
		upstream = Default()
	}
	return &CountingAllocator{
		upstream: upstream,
		live:     make(map[uintptr]int),
	}
}

func (c *CountingAllocator) Allocate(size int) ([]byte, error) {
	buf, err := c.upstream.Allocate(size)
	if err != nil {
		return nil, err
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	c.mu.Lock()
	c.live[base] = len(buf)
	c.mu.Unlock()
	c.numAllocate.Add(1)
	c.inuseBytes.Add(int64(len(buf)))
	return buf, nil
}

func (c *CountingAllocator) Release(buf []byte) {
	if len(buf) == 0 {
		return
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	c.mu.Lock()
	length, ok := c.live[base]
	delete(c.live, base)
	c.mu.Unlock()
	if !ok {
		panic(poolerr.NewInternalError("release of untracked buffer 0x%x", base))
	}
	c.numRelease.Add(1)
	c.inuseBytes.Add(-int64(length))
	c.upstream.Release(buf)
}

// NumAllocate is the count of successful Allocate calls.
func (c *CountingAllocator) NumAllocate() int64 {
	return c.numAllocate.Load()
}

// NumRelease is the count of Release calls.
func (c *CountingAllocator) NumRelease() int64 {
	return c.numRelease.Load()
}

// InuseBytes is the total length of live buffers.
func (c *CountingAllocator) InuseBytes() int64 {
	return c.inuseBytes.Load()
}

// NumLive is the number of live buffers.
func (c *CountingAllocator) NumLive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}
