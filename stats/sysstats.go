package stats

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// SysStats tracks the daemon's own resource usage across successive
// collections, grounded on sptp/client/sysstats.go's SysStats/
// CollectRuntimeStats.
type SysStats struct {
	memstats *runtime.MemStats
}

// Snapshot is one Collect call's result.
type Snapshot struct {
	UptimeSecs uint64
	CPUPercent float64
	RSS        uint64
	VMS        uint64
	NumFDs     int32
	NumThreads int32
	Goroutines int
	HeapAlloc  uint64
	HeapInuse  uint64
	NumGC      uint32
}

// Collect gathers process and Go runtime metrics. Errors reading any single
// gopsutil field are non-fatal: the corresponding Snapshot field is left
// zero rather than failing the whole collection.
func (s *SysStats) Collect() (Snapshot, error) {
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	snap := Snapshot{
		UptimeSecs: uint64(time.Since(procStartTime).Seconds()),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
		NumGC:      m.NumGC,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.memstats = m
		return snap, err
	}
	if pct, err := proc.Percent(0); err == nil {
		snap.CPUPercent = pct
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		snap.RSS = mem.RSS
		snap.VMS = mem.VMS
	}
	if fds, err := proc.NumFDs(); err == nil {
		snap.NumFDs = fds
	}
	if threads, err := proc.NumThreads(); err == nil {
		snap.NumThreads = threads
	}

	s.memstats = m
	return snap, nil
}
