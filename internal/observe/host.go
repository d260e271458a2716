// Package observe provides ready-made observation functions for long-poll
// sessions. A failed sample is logged and reported as absent, which the
// session treats as NO_DATA and retries.
package observe

import (
	"log"
	"math"

	"github.com/agent-racer/longpoll/internal/longpoll"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// CPUPercent samples total CPU utilisation since the previous call.
func CPUPercent() longpoll.ObserveFunc[float64] {
	return func() (float64, bool) {
		pct, err := cpu.Percent(0, false)
		if err != nil {
			log.Printf("observe: cpu: %v", err)
			return 0, false
		}
		if len(pct) == 0 {
			return 0, false
		}
		return pct[0], true
	}
}

func MemoryUsedPercent() longpoll.ObserveFunc[float64] {
	return func() (float64, bool) {
		vm, err := mem.VirtualMemory()
		if err != nil {
			log.Printf("observe: memory: %v", err)
			return 0, false
		}
		return vm.UsedPercent, true
	}
}

// LoadAverage1 samples the one-minute load average.
func LoadAverage1() longpoll.ObserveFunc[float64] {
	return func() (float64, bool) {
		avg, err := load.Avg()
		if err != nil {
			log.Printf("observe: load: %v", err)
			return 0, false
		}
		return avg.Load1, true
	}
}

func ProcessCount() longpoll.ObserveFunc[int] {
	return func() (int, bool) {
		pids, err := process.Pids()
		if err != nil {
			log.Printf("observe: processes: %v", err)
			return 0, false
		}
		return len(pids), true
	}
}

// DeltaAtLeast treats a float sample as changed once it moved by at least
// threshold from the last reported value. A zero threshold reports any
// difference.
func DeltaAtLeast(threshold float64) longpoll.ChangeFunc[float64] {
	return func(candidate, previous float64) bool {
		d := math.Abs(candidate - previous)
		if threshold <= 0 {
			return d > 0
		}
		return d >= threshold
	}
}
