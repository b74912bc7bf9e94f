//go:build linux

// threadpool_linux.go - CPU-Affinitaet und Prioritaet (Linux)
// Enthaelt: applyAffinity, applyPriority via sched_setaffinity und
// setpriority; beides best effort

package ggml

import (
	"log/slog"
	"runtime"

	"golang.org/x/sys/unix"
)

// applyAffinity pinnt den aktuellen OS-Thread auf die CPUs der Maske.
// Ohne Maske erhaelt Worker ith reihum eine einzelne CPU.
func applyAffinity(ith int, mask []bool) {
	var set unix.CPUSet
	if len(mask) == 0 {
		set.Set(ith % runtime.NumCPU())
	} else {
		for cpu, on := range mask {
			if on {
				set.Set(cpu)
			}
		}
	}
	if set.Count() == 0 {
		return
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		slog.Debug("sched_setaffinity failed", "worker", ith, "error", err)
	}
}

// applyPriority hebt die Prioritaet des aktuellen Threads an
// (nice-Stufen; echte FIFO-Klassen verlangen Capabilities)
func applyPriority(prio Priority) {
	var nice int
	switch prio {
	case PriorityNormal:
		return
	case PriorityMedium:
		nice = -5
	case PriorityHigh:
		nice = -10
	case PriorityRealtime:
		nice = -20
	}

	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, nice); err != nil {
		slog.Debug("setpriority failed", "prio", int(prio), "error", err)
	}
}
