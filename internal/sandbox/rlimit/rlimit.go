// Package rlimit applies kernel resource limits to the current process.
package rlimit

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gardenerik/parent/internal/model"
)

// Limit is one compiled rlimit: resource plus the value set as both the soft
// and the hard limit.
type Limit struct {
	Name     string
	Resource int
	Value    uint64
}

// Compile derives the rlimit set from the configured values. Unconfigured
// limits are absent from the result and stay at their inherited values.
// Core dumps are always disabled. The wall-clock limit has no kernel rlimit
// and is not handled here.
func Compile(limits model.ResourceLimits) []Limit {
	var compiled []Limit

	if limits.MemoryKB != nil {
		compiled = append(compiled, Limit{
			Name:     "address-space",
			Resource: unix.RLIMIT_AS,
			Value:    uint64(*limits.MemoryKB) * 1000,
		})
	}

	if limits.StackKB != nil {
		value := uint64(unix.RLIM_INFINITY)
		if *limits.StackKB > 0 {
			value = uint64(*limits.StackKB) * 1000
		}
		compiled = append(compiled, Limit{
			Name:     "stack",
			Resource: unix.RLIMIT_STACK,
			Value:    value,
		})
	}

	if limits.CPUTimeMS != nil {
		// RLIMIT_CPU has second granularity, round up.
		compiled = append(compiled, Limit{
			Name:     "cpu-time",
			Resource: unix.RLIMIT_CPU,
			Value:    uint64(*limits.CPUTimeMS+999) / 1000,
		})
	}

	if limits.FileSizeKB != nil {
		compiled = append(compiled, Limit{
			Name:     "file-size",
			Resource: unix.RLIMIT_FSIZE,
			Value:    uint64(*limits.FileSizeKB) * 1000,
		})
	}

	if limits.Processes != nil {
		compiled = append(compiled, Limit{
			Name:     "processes",
			Resource: unix.RLIMIT_NPROC,
			Value:    uint64(*limits.Processes),
		})
	}

	compiled = append(compiled, Limit{
		Name:     "core",
		Resource: unix.RLIMIT_CORE,
		Value:    0,
	})

	return compiled
}

// Apply sets every compiled limit on the current process, soft = hard.
func Apply(limits []Limit) error {
	for _, l := range limits {
		err := unix.Setrlimit(l.Resource, &unix.Rlimit{Cur: l.Value, Max: l.Value})
		if err != nil {
			return fmt.Errorf("could not set %s limit to %d: %w", l.Name, l.Value, err)
		}
	}

	return nil
}
