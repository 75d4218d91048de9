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
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsAllocator wraps an upstream allocator and publishes segment
// traffic to prometheus.  Any of the metrics may be nil to skip it.
type MetricsAllocator struct {
	upstream Allocator

	allocateBytesCounter   prometheus.Counter
	inuseBytesGauge        prometheus.Gauge
	allocateObjectsCounter prometheus.Counter
	inuseObjectsGauge      prometheus.Gauge
}

var _ Allocator = new(MetricsAllocator)

func NewMetricsAllocator(
	upstream Allocator,
	allocateBytesCounter prometheus.Counter,
	inuseBytesGauge prometheus.Gauge,
	allocateObjectsCounter prometheus.Counter,
	inuseObjectsGauge prometheus.Gauge,
) *MetricsAllocator {
	if upstream == nil {
		upstream = Default()
	}
	return &MetricsAllocator{
		upstream:               upstream,
		allocateBytesCounter:   allocateBytesCounter,
		inuseBytesGauge:        inuseBytesGauge,
		allocateObjectsCounter: allocateObjectsCounter,
		inuseObjectsGauge:      inuseObjectsGauge,
	}
}

func (m *MetricsAllocator) Allocate(size int) ([]byte, error) {
	buf, err := m.upstream.Allocate(size)
	if err != nil {
		return nil, err
	}
	if m.allocateBytesCounter != nil {
		m.allocateBytesCounter.Add(float64(len(buf)))
	}
	if m.inuseBytesGauge != nil {
		m.inuseBytesGauge.Add(float64(len(buf)))
	}
	if m.allocateObjectsCounter != nil {
		m.allocateObjectsCounter.Inc()
	}
	if m.inuseObjectsGauge != nil {
		m.inuseObjectsGauge.Inc()
	}
	return buf, nil
}

func (m *MetricsAllocator) Release(buf []byte) {
	if m.inuseBytesGauge != nil {
		m.inuseBytesGauge.Sub(float64(len(buf)))
	}
	if m.inuseObjectsGauge != nil {
		m.inuseObjectsGauge.Dec()
	}
	m.upstream.Release(buf)
}
