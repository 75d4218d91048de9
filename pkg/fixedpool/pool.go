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

// Package fixedpool implements chained pools of fixed size objects.
//
// A pool hands out objects of one size, rounded up to a power of two.
// Storage comes in segments of SegmentSlots objects each; when every
// segment is full the chain grows by one segment and never shrinks
// until Destroy.  Occupancy is one machine word of bits per segment,
// so alloc and free are a bit scan and a mask.
//
// A Pool is not safe for concurrent use.  Callers own the
// serialization of each pool; different pools need no coordination.
// Stats counters are atomic so reporting goroutines may read them
// while the owner allocates.
package fixedpool

import (
	"unsafe"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/prophile/poolalloc/pkg/common/malloc"
	"github.com/prophile/poolalloc/pkg/common/mathutil"
	"github.com/prophile/poolalloc/pkg/common/poolerr"
	"github.com/prophile/poolalloc/pkg/common/slotset"
	"github.com/prophile/poolalloc/pkg/logutil"
)

const (
	// SegmentSlots is the number of objects in every segment.
	SegmentSlots = slotset.GroupSlots

	// MaxObjectSize bounds the object size before rounding.
	MaxObjectSize = 1 << 31
)

// segment is one allocator buffer holding SegmentSlots slots.  The
// head segment's buffer additionally carries the pool's extra region
// after the slots.
type segment struct {
	buf   []byte
	base  uintptr
	slots slotset.Group
}

// Pool is a chain of segments sharing one object size.  The zero value
// is not usable; construct with New.
type Pool struct {
	name      string
	layout    slotset.Layout
	alloc     malloc.Allocator
	objSize   int // rounded, == 1 << log2Size
	log2Size  int
	extra     []byte
	segments  []*segment
	stats     Stats
	destroyed bool
}

// New creates a pool whose objects are objectSize bytes, rounded up to
// the next power of two.  The pool starts with one segment and grows a
// segment at a time on demand.  Names are process unique while the
// pool lives.
func New(name string, objectSize int, opts ...Option) (*Pool, error) {
	if objectSize <= 0 || objectSize > MaxObjectSize {
		return nil, poolerr.NewInvalidSize("object size %d out of range [1, %d]", objectSize, MaxObjectSize)
	}

	options := poolOptions{
		layout: slotset.DefaultLayout(),
		alloc:  malloc.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.extraBytes < 0 {
		return nil, poolerr.NewInvalidArg("extra bytes", options.extraBytes)
	}
	if options.layout.WordBits() == 0 {
		return nil, poolerr.NewInvalidArg("layout", "zero value")
	}

	size := int(mathutil.NextPow2(uint64(objectSize)))
	p := &Pool{
		name:     name,
		layout:   options.layout,
		alloc:    options.alloc,
		objSize:  size,
		log2Size: mathutil.Log2(uint64(size)),
	}
	if err := register(p); err != nil {
		return nil, err
	}

	seg, err := p.grow(options.extraBytes)
	if err != nil {
		unregister(p)
		return nil, err
	}
	if options.extraBytes > 0 {
		p.extra = seg.buf[p.slotBytes():]
	}

	logutil.Debug("fixed pool created",
		zap.String("pool", name),
		zap.Int("object size", size),
		zap.Int("extra bytes", options.extraBytes),
		zap.String("layout", options.layout.Order().String()),
	)
	return p, nil
}

// MustNew is New for callers that cannot proceed on failure anyway.
func MustNew(name string, objectSize int, opts ...Option) *Pool {
	p, err := New(name, objectSize, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// slotBytes is the slot region size of every segment buffer.
func (p *Pool) slotBytes() int {
	return SegmentSlots << p.log2Size
}

func (p *Pool) grow(extraBytes int) (*segment, error) {
	buf, err := p.alloc.Allocate(p.slotBytes() + extraBytes)
	if err != nil {
		logutil.Error("pool segment allocation failed",
			zap.String("pool", p.name),
			zap.Int("bytes", p.slotBytes()+extraBytes),
			zap.Error(err),
		)
		return nil, poolerr.NewOOM()
	}
	seg := &segment{
		buf:   buf,
		base:  uintptr(unsafe.Pointer(unsafe.SliceData(buf))),
		slots: p.layout.Empty(),
	}
	p.segments = append(p.segments, seg)
	return seg, nil
}

// Alloc returns one slot of ObjectSize bytes with no bookkeeping
// around it.  The oldest segment with room wins and within a segment
// the lowest free slot wins, so a freed slot is reused before the
// chain grows.  Slot contents are not cleared; reused slots carry
// whatever the previous owner left.
func (p *Pool) Alloc() ([]byte, error) {
	p.mustLive("alloc")
	for _, seg := range p.segments {
		if !p.layout.IsFull(seg.slots) {
			return p.take(seg), nil
		}
	}

	seg, err := p.grow(0)
	if err != nil {
		return nil, err
	}
	p.stats.NumGrow.Add(1)
	return p.take(seg), nil
}

func (p *Pool) take(seg *segment) []byte {
	idx := p.layout.FindFree(seg.slots)
	if idx < 0 {
		panic(poolerr.NewInternalError("pool %s: free scan on full segment", p.name))
	}
	seg.slots = p.layout.Mark(seg.slots, idx)
	p.stats.RecordAlloc(int64(p.objSize))
	off := idx << p.log2Size
	return seg.buf[off : off+p.objSize : off+p.objSize]
}

// Free returns a slot to its pool, making it immediately reusable.
// Freeing the empty buffer is a no-op.  A pointer outside every
// segment, or inside one but off a slot boundary, is ErrInvalidFree; a
// slot that is already free is ErrDoubleFree.  Either way the chain
// stays usable.
func (p *Pool) Free(data []byte) error {
	p.mustLive("free")
	if len(data) == 0 {
		return nil
	}

	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	for _, seg := range p.segments {
		if ptr < seg.base || ptr >= seg.base+uintptr(p.slotBytes()) {
			continue
		}
		off := ptr - seg.base
		if off&uintptr(p.objSize-1) != 0 {
			return poolerr.NewInvalidFree("pointer 0x%x not on a slot boundary of pool %s", ptr, p.name)
		}
		idx := int(off >> p.log2Size)
		if p.layout.IsFree(seg.slots, idx) {
			return poolerr.NewDoubleFree("slot %d of pool %s", idx, p.name)
		}
		seg.slots = p.layout.Unmark(seg.slots, idx)
		p.stats.RecordFree(int64(p.objSize))
		return nil
	}
	return poolerr.NewInvalidFree("pointer 0x%x not owned by pool %s", ptr, p.name)
}

// Destroy releases every segment buffer, the head's extra region with
// it, back to the allocator.  Live objects are logged as a leak and
// invalidated.  Destroy on a nil or already destroyed pool is a
// no-op; any other operation after Destroy panics.
func (p *Pool) Destroy() {
	if p == nil || p.destroyed {
		return
	}
	if n := p.occupiedCount(); n > 0 {
		logutil.Warn("destroying pool with live objects",
			zap.String("pool", p.name),
			zap.Int("objects", n),
			zap.Int64("bytes", int64(n)*int64(p.objSize)),
		)
	}
	for _, seg := range p.segments {
		p.alloc.Release(seg.buf)
	}
	p.segments = nil
	p.extra = nil
	p.destroyed = true
	unregister(p)
}

func (p *Pool) mustLive(op string) {
	if p.destroyed {
		panic(poolerr.NewInternalError("pool %s: %s after destroy", p.name, op))
	}
}

func (p *Pool) occupiedCount() int {
	n := 0
	for _, seg := range p.segments {
		n += SegmentSlots - p.layout.FreeCount(seg.slots)
	}
	return n
}

// Name returns the registry name.
func (p *Pool) Name() string {
	return p.name
}

// ObjectSize is the per slot size after rounding.
func (p *Pool) ObjectSize() int {
	return p.objSize
}

// NumSegments is the current chain length.
func (p *Pool) NumSegments() int {
	return len(p.segments)
}

// ExtraData returns the caller region that trails the head segment,
// nil when the pool was created without one.  It lives exactly as long
// as the pool.
func (p *Pool) ExtraData() []byte {
	p.mustLive("extra data")
	return p.extra
}

// Stats returns the live counters of the pool.
func (p *Pool) Stats() *Stats {
	return &p.stats
}

// CurrNB is the number of bytes currently held by callers.
func (p *Pool) CurrNB() int64 {
	return p.stats.NumCurrBytes.Load()
}

// Occupied returns the occupied slot positions across the chain, as
// segmentIndex*SegmentSlots + slot.
func (p *Pool) Occupied() *roaring.Bitmap {
	bm := roaring.New()
	for i, seg := range p.segments {
		for s := 0; s < SegmentSlots; s++ {
			if !p.layout.IsFree(seg.slots, s) {
				bm.Add(uint32(i*SegmentSlots + s))
			}
		}
	}
	return bm
}
