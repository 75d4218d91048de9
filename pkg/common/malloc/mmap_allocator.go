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

//go:build unix

package malloc

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/prophile/poolalloc/pkg/common/poolerr"
	"github.com/prophile/poolalloc/pkg/logutil"
)

// MmapAllocator backs segment buffers with anonymous private mappings,
// keeping them out of the Go heap.  Buffers come back page aligned and
// zero filled.
type MmapAllocator struct{}

var _ Allocator = MmapAllocator{}

func (MmapAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, poolerr.NewInvalidSize("non-positive allocation size %d", size)
	}
	buf, err := unix.Mmap(
		-1, 0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Release unmaps the buffer.  Munmap wants the slice Mmap returned, so
// a failure here means the caller handed back something else; that is
// logged rather than returned since release has no error path.
func (MmapAllocator) Release(buf []byte) {
	if len(buf) == 0 {
		return
	}
	if err := unix.Munmap(buf); err != nil {
		logutil.Error("munmap failed",
			zap.Int("length", len(buf)),
			zap.Error(err),
		)
	}
}
