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
	"encoding/json"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/prophile/poolalloc/pkg/common/poolerr"
)

// Live pools by name, for usage reporting and leak hunting.
var namedPools sync.Map

func register(p *Pool) error {
	if _, loaded := namedPools.LoadOrStore(p.name, p); loaded {
		return poolerr.NewInvalidArg("pool name", p.name)
	}
	return nil
}

func unregister(p *Pool) {
	if v, ok := namedPools.Load(p.name); ok && v.(*Pool) == p {
		namedPools.Delete(p.name)
	}
}

type poolUsage struct {
	Name          string `json:"name"`
	ObjectSize    int    `json:"object_size"`
	Segments      int    `json:"segments"`
	InuseObjects  int    `json:"inuse_objects"`
	InuseBytes    int64  `json:"inuse_bytes"`
	Inuse         string `json:"inuse"`
	NumAlloc      int64  `json:"num_alloc"`
	NumFree       int64  `json:"num_free"`
	NumGrow       int64  `json:"num_grow"`
	HighWaterMark string `json:"high_water_mark"`
}

// usageOf reads only immutable fields and atomic counters, so it is
// safe against a pool whose owner is mid allocation.  The chain never
// shrinks, so the segment count is the grow count plus the initial
// segment.
func usageOf(p *Pool) poolUsage {
	curr := p.CurrNB()
	return poolUsage{
		Name:          p.name,
		ObjectSize:    p.objSize,
		Segments:      int(p.stats.NumGrow.Load()) + 1,
		InuseObjects:  int(curr) / p.objSize,
		InuseBytes:    curr,
		Inuse:         humanize.IBytes(uint64(curr)),
		NumAlloc:      p.stats.NumAlloc.Load(),
		NumFree:       p.stats.NumFree.Load(),
		NumGrow:       p.stats.NumGrow.Load(),
		HighWaterMark: humanize.IBytes(uint64(p.stats.HighWaterMark.Load())),
	}
}

// ReportUsage returns a json usage report of the named pool, or of
// every live pool when name is empty.  Unknown names report an empty
// list.
func ReportUsage(name string) string {
	usages := []poolUsage{}
	if name == "" {
		namedPools.Range(func(_, v any) bool {
			usages = append(usages, usageOf(v.(*Pool)))
			return true
		})
		sort.Slice(usages, func(i, j int) bool {
			return usages[i].Name < usages[j].Name
		})
	} else if v, ok := namedPools.Load(name); ok {
		usages = append(usages, usageOf(v.(*Pool)))
	}

	data, err := json.MarshalIndent(usages, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
