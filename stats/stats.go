// Package stats samples resource usage of the host running the console and
// exposes it as go-metrics gauges next to the request timers.
package stats

import (
	"path/filepath"

	"github.com/c9s/goprocinfo/linux"
	"github.com/op/go-logging"
	"github.com/rcrowley/go-metrics"
)

var log = logging.MustGetLogger("kvconsole.stats")

// Host is one sample. Fields that could not be read stay zero.
type Host struct {
	MemTotalKb     uint64  `json:"mem_total_kb"`
	MemAvailableKb uint64  `json:"mem_available_kb"`
	DiskTotal      uint64  `json:"disk_total"`
	DiskFree       uint64  `json:"disk_free"`
	CpuUsage       float64 `json:"cpu_usage"`
	Load1          float64 `json:"load1"`
}

func (h Host) MemUsedKb() uint64 {
	if h.MemAvailableKb > h.MemTotalKb {
		return 0
	}
	return h.MemTotalKb - h.MemAvailableKb
}

func (h Host) MemUsedPercent() float64 {
	if h.MemTotalKb == 0 {
		return 0
	}
	return float64(h.MemUsedKb()) / float64(h.MemTotalKb) * 100
}

func (h Host) DiskUsed() uint64 {
	if h.DiskFree > h.DiskTotal {
		return 0
	}
	return h.DiskTotal - h.DiskFree
}

// Sampler reads /proc style files under ProcDir and file system usage of
// DiskPath.
type Sampler struct {
	ProcDir  string
	DiskPath string
}

func NewSampler() *Sampler {
	return &Sampler{ProcDir: "/proc", DiskPath: "/"}
}

func (s *Sampler) Sample() Host {
	var h Host

	if mem, err := linux.ReadMemInfo(filepath.Join(s.ProcDir, "meminfo")); err != nil {
		log.Warningf("Error reading meminfo: %v", err)
	} else {
		h.MemTotalKb = mem.MemTotal
		h.MemAvailableKb = mem.MemAvailable
	}

	if disk, err := linux.ReadDisk(s.DiskPath); err != nil {
		log.Warningf("Error reading disk usage of %s: %v", s.DiskPath, err)
	} else {
		h.DiskTotal = disk.All
		h.DiskFree = disk.Free
	}

	if stat, err := linux.ReadStat(filepath.Join(s.ProcDir, "stat")); err != nil {
		log.Warningf("Error reading stat: %v", err)
	} else {
		h.CpuUsage = cpuUsage(stat.CPUStatAll)
	}

	if load, err := linux.ReadLoadAvg(filepath.Join(s.ProcDir, "loadavg")); err != nil {
		log.Warningf("Error reading loadavg: %v", err)
	} else {
		h.Load1 = load.Last1Min
	}

	return h
}

// cpuUsage is the busy share of all CPU time since boot.
func cpuUsage(c linux.CPUStat) float64 {
	idle := c.Idle + c.IOWait
	busy := c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	total := idle + busy
	if total == 0 {
		return 0
	}

	return float64(busy) / float64(total)
}

// Register adds host gauges to registry. Each gauge takes a fresh sample
// when read.
func Register(registry metrics.Registry, s *Sampler) {
	gauges := map[string]func(Host) float64{
		"host.mem.used_percent": Host.MemUsedPercent,
		"host.cpu.usage":        func(h Host) float64 { return h.CpuUsage },
		"host.load1":            func(h Host) float64 { return h.Load1 },
	}
	for name, read := range gauges {
		read := read
		registry.GetOrRegister(name, metrics.NewFunctionalGaugeFloat64(func() float64 {
			return read(s.Sample())
		}))
	}

	registry.GetOrRegister("host.disk.free", metrics.NewFunctionalGauge(func() int64 {
		return int64(s.Sample().DiskFree)
	}))
}
