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

package main

import (
	"github.com/BurntSushi/toml"

	"github.com/prophile/poolalloc/pkg/common/poolerr"
	"github.com/prophile/poolalloc/pkg/common/slotset"
	"github.com/prophile/poolalloc/pkg/fixedpool"
	"github.com/prophile/poolalloc/pkg/logutil"
)

// Config is the toml layout of a poolbench run.
type Config struct {
	Log   logutil.LogConfig `toml:"log"`
	Bench BenchConfig       `toml:"bench"`
}

type BenchConfig struct {
	// Workers is the number of concurrent tasks; every task owns its
	// pools outright, nothing shares a pool.
	Workers int `toml:"workers"`
	// PoolsPerWorker is how many pools each task cycles through.
	PoolsPerWorker int `toml:"pools-per-worker"`
	// ObjectSize is the requested object size, rounded up by the pool.
	ObjectSize int `toml:"object-size"`
	// ExtraBytes is the per pool trailing caller region.
	ExtraBytes int `toml:"extra-bytes"`
	// Iterations is the alloc/free steps per pool.
	Iterations int `toml:"iterations"`
	// MaxLive bounds the outstanding objects per pool; pushing it past
	// 64 forces chain growth.
	MaxLive int `toml:"max-live"`
	// WordBits and ScanOrder pick the slot scan layout.
	WordBits  int    `toml:"word-bits"`
	ScanOrder string `toml:"scan-order"`
	// Seed makes runs repeatable.
	Seed int64 `toml:"seed"`
}

func parseConfigFromFile(file string) (*Config, error) {
	var cfg Config
	if file != "" {
		if _, err := toml.DecodeFile(file, &cfg); err != nil {
			return nil, poolerr.NewBadConfig("cannot parse %s: %v", file, err)
		}
	}
	cfg.SetDefaultValues()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaultValues() {
	if c.Bench.Workers == 0 {
		c.Bench.Workers = 4
	}
	if c.Bench.PoolsPerWorker == 0 {
		c.Bench.PoolsPerWorker = 2
	}
	if c.Bench.ObjectSize == 0 {
		c.Bench.ObjectSize = 64
	}
	if c.Bench.Iterations == 0 {
		c.Bench.Iterations = 100000
	}
	if c.Bench.MaxLive == 0 {
		c.Bench.MaxLive = 192
	}
	if c.Bench.WordBits == 0 {
		c.Bench.WordBits = 64
	}
	if c.Bench.Seed == 0 {
		c.Bench.Seed = 1
	}
}

func (c *Config) Validate() error {
	b := &c.Bench
	if b.Workers < 0 {
		return poolerr.NewBadConfig("workers must be positive, got %d", b.Workers)
	}
	if b.PoolsPerWorker < 0 {
		return poolerr.NewBadConfig("pools-per-worker must be positive, got %d", b.PoolsPerWorker)
	}
	if b.ObjectSize < 0 || b.ObjectSize > fixedpool.MaxObjectSize {
		return poolerr.NewBadConfig("object-size %d out of range [1, %d]", b.ObjectSize, fixedpool.MaxObjectSize)
	}
	if b.ExtraBytes < 0 {
		return poolerr.NewBadConfig("extra-bytes must not be negative, got %d", b.ExtraBytes)
	}
	if b.Iterations < 0 {
		return poolerr.NewBadConfig("iterations must be positive, got %d", b.Iterations)
	}
	if b.MaxLive < 0 {
		return poolerr.NewBadConfig("max-live must be positive, got %d", b.MaxLive)
	}
	if _, err := b.layout(); err != nil {
		return err
	}
	return nil
}

func (b *BenchConfig) layout() (slotset.Layout, error) {
	order, err := slotset.ParseOrder(b.ScanOrder)
	if err != nil {
		return slotset.Layout{}, poolerr.NewBadConfig("scan-order: %v", err)
	}
	layout, err := slotset.NewLayout(b.WordBits, order)
	if err != nil {
		return slotset.Layout{}, poolerr.NewBadConfig("word-bits: %v", err)
	}
	return layout, nil
}
