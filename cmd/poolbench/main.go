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

// poolbench exercises pools from concurrent workers and prints a
// usage and metrics report.  Every pool is owned by exactly one
// worker; only the backing allocator is shared.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/prophile/poolalloc/pkg/common/malloc"
	"github.com/prophile/poolalloc/pkg/common/slotset"
	"github.com/prophile/poolalloc/pkg/fixedpool"
	"github.com/prophile/poolalloc/pkg/logutil"
)

var (
	configFile = flag.String("cfg", "", "toml configuration used to start poolbench")
)

func main() {
	flag.Parse()

	cfg, err := parseConfigFromFile(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	logutil.SetupLogger(&cfg.Log)

	if err := run(cfg); err != nil {
		panic(err)
	}
}

func run(cfg *Config) error {
	b := cfg.Bench
	layout, err := b.layout()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	allocateBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poolbench_allocate_bytes",
		Help: "bytes requested from the backing allocator",
	})
	inuseBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "poolbench_inuse_bytes",
		Help: "bytes currently held from the backing allocator",
	})
	allocateObjects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poolbench_allocate_objects",
		Help: "buffers requested from the backing allocator",
	})
	inuseObjects := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "poolbench_inuse_objects",
		Help: "buffers currently held from the backing allocator",
	})
	registry.MustRegister(allocateBytes, inuseBytes, allocateObjects, inuseObjects)

	counting := malloc.NewCountingAllocator(malloc.Default())
	alloc := malloc.NewMetricsAllocator(counting, allocateBytes, inuseBytes, allocateObjects, inuseObjects)

	logutil.Info("starting poolbench",
		zap.Int("workers", b.Workers),
		zap.Int("pools per worker", b.PoolsPerWorker),
		zap.Int("object size", b.ObjectSize),
		zap.Int("iterations", b.Iterations),
		zap.Int("max live", b.MaxLive),
		zap.String("layout", fmt.Sprintf("%d-bit %s", layout.WordBits(), layout.Order())),
	)

	workers, err := ants.NewPool(b.Workers)
	if err != nil {
		return err
	}
	defer workers.Release()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		pools []*fixedpool.Pool
	)
	errs := make(chan error, b.Workers)
	start := time.Now()
	for w := 0; w < b.Workers; w++ {
		w := w
		wg.Add(1)
		err := workers.Submit(func() {
			defer wg.Done()
			owned, err := runWorker(w, &b, layout, alloc)
			mu.Lock()
			pools = append(pools, owned...)
			mu.Unlock()
			if err != nil {
				errs <- err
			}
		})
		if err != nil {
			wg.Done()
			return err
		}
	}
	wg.Wait()
	elapsed := time.Since(start)
	close(errs)
	for err := range errs {
		return err
	}

	totalOps := int64(b.Workers) * int64(b.PoolsPerWorker) * int64(b.Iterations)
	logutil.Info("poolbench done",
		zap.Duration("elapsed", elapsed),
		zap.Int64("ops", totalOps),
	)

	fmt.Printf("%s ops in %s, %s ops/s\n",
		humanize.Comma(totalOps), elapsed,
		humanize.Comma(int64(float64(totalOps)/elapsed.Seconds())))
	fmt.Printf("allocator: %d allocate, %d release, %s in use\n",
		counting.NumAllocate(), counting.NumRelease(),
		humanize.IBytes(uint64(counting.InuseBytes())))
	fmt.Println(fixedpool.ReportUsage(""))

	mfs, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		fmt.Println(mf)
	}

	for _, p := range pools {
		p.Destroy()
	}
	fmt.Printf("after destroy: %s in use, %d live buffers\n",
		humanize.IBytes(uint64(counting.InuseBytes())), counting.NumLive())
	return nil
}

// runWorker churns its own pools and hands them back drained, still
// alive so the caller can report on them first.
func runWorker(id int, b *BenchConfig, layout slotset.Layout, alloc malloc.Allocator) ([]*fixedpool.Pool, error) {
	rng := rand.New(rand.NewSource(b.Seed + int64(id)))
	pools := make([]*fixedpool.Pool, 0, b.PoolsPerWorker)
	for i := 0; i < b.PoolsPerWorker; i++ {
		p, err := fixedpool.New(
			fmt.Sprintf("bench-w%d-p%d", id, i),
			b.ObjectSize,
			fixedpool.WithAllocator(alloc),
			fixedpool.WithLayout(layout),
			fixedpool.WithExtraBytes(b.ExtraBytes),
		)
		if err != nil {
			return pools, err
		}
		pools = append(pools, p)
	}
	for _, p := range pools {
		if err := churn(p, rng, b.Iterations, b.MaxLive); err != nil {
			return pools, err
		}
	}
	return pools, nil
}

// churn walks one pool through a bounded random alloc/free sequence
// and drains it at the end.
func churn(p *fixedpool.Pool, rng *rand.Rand, iters, maxLive int) error {
	live := make([][]byte, 0, maxLive)
	for i := 0; i < iters; i++ {
		if len(live) == maxLive || (len(live) > 0 && rng.Intn(2) == 0) {
			victim := rng.Intn(len(live))
			if err := p.Free(live[victim]); err != nil {
				return err
			}
			live[victim] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		buf, err := p.Alloc()
		if err != nil {
			return err
		}
		buf[0] = byte(i)
		live = append(live, buf)
	}
	for _, buf := range live {
		if err := p.Free(buf); err != nil {
			return err
		}
	}
	return nil
}
