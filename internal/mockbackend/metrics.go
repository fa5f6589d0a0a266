package mockbackend

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/voxdash/voxctl/internal/client"
)

const totalMemoryGB = 16.0

// metrics fabricates plausible host gauges as a bounded random walk. Nothing
// here measures the real host.
type metrics struct {
	mu     sync.Mutex
	rng    *rand.Rand
	cpu    float64
	memory float64
	disk   float64
}

func newMetrics() *metrics {
	return &metrics{
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		cpu:    18,
		memory: 52,
		disk:   61,
	}
}

func (m *metrics) next() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cpu = m.walk(m.cpu, 8, 2, 95)
	m.memory = m.walk(m.memory, 1.5, 20, 90)
	m.disk = m.walk(m.disk, 0.1, 10, 98)

	return client.SystemInfo{
		CPUUsage:        fmt.Sprintf("%.1f%%", m.cpu),
		MemoryUsage:     fmt.Sprintf("%.1f%%", m.memory),
		DiskUsage:       fmt.Sprintf("%.1f%%", m.disk),
		AvailableMemory: fmt.Sprintf("%.2f GB", totalMemoryGB*(100-m.memory)/100),
	}
}

func (m *metrics) walk(v, step, lo, hi float64) float64 {
	v += (m.rng.Float64()*2 - 1) * step

	return min(max(v, lo), hi)
}
