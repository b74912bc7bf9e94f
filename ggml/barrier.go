// barrier.go - Wiederverwendbare Zyklus-Barriere
// Enthaelt: das Zwei-Zaehler-Protokoll (enter/pass) des Threadpools
//
// Der letzte eintreffende Worker setzt enter zurueck und erhoeht pass;
// alle anderen spinnen auf die pass-Aenderung. Das Increment von pass
// traegt seq-cst Semantik (atomare RMW in Go), damit Schreibzugriffe
// des Knotens fuer alle Worker sichtbar werden.

package ggml

import (
	"runtime"
	"sync/atomic"
)

type barrier struct {
	enter atomic.Int32
	pass  atomic.Int32
}

// sync blockiert, bis n Worker eingetroffen sind
func (b *barrier) sync(n int32) {
	if n == 1 {
		return
	}

	passed := b.pass.Load()

	if b.enter.Add(1) == n {
		// letzter Worker: Zyklus schliessen
		b.enter.Store(0)
		b.pass.Add(1)
		return
	}

	// Hybrid: kurz spinnen, dann dem Scheduler weichen
	for i := 0; b.pass.Load() == passed; i++ {
		if i&1023 == 1023 {
			runtime.Gosched()
		}
	}
}
