// threadpool.go - Persistenter Fork-Join-Threadpool
// Enthaelt: ThreadPoolParams, ThreadPool, NewThreadPool, Kickoff ueber
// graphSeq, Pause/Resume/Free, Abort-Propagation, Chunk-Stealing-Zaehler
//
// Die Worker sind persistent: im Leerlauf pollen sie ein Spin-Fenster
// auf graphSeq und legen sich dann auf die Condvar. Der Hauptthread
// uebernimmt waehrend der Berechnung die Rolle von Worker 0.

package ggml

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Priority ist die gewuenschte Scheduling-Prioritaet der Worker
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityRealtime
)

// defaultPoll ist das Standard-Spin-Fenster vor dem Schlafen
const defaultPoll = 50000

// MaxThreads begrenzt die Worker-Anzahl
const MaxThreads = 512

// ThreadPoolParams konfiguriert einen Pool
type ThreadPoolParams struct {
	// NThreads ist die Anzahl der Worker inklusive Hauptthread
	NThreads int
	// Prio ist die Scheduling-Prioritaet (best effort)
	Prio Priority
	// Poll ist das Spin-Fenster in Iterationen; 0 schlaeft sofort
	Poll int
	// Strict bindet Worker fest an CPUs der Maske
	Strict bool
	// CPUMask waehlt die erlaubten CPUs; leer bedeutet alle
	CPUMask []bool
	// Paused startet den Pool angehalten
	Paused bool
}

// ThreadPoolParamsDefault liefert eine Standard-Konfiguration
func ThreadPoolParamsDefault(nThreads int) ThreadPoolParams {
	return ThreadPoolParams{
		NThreads: nThreads,
		Poll:     defaultPoll,
	}
}

// ThreadPool ist der persistente Worker-Verbund
type ThreadPool struct {
	id string

	// Kickoff- und Barrier-Zustand; die Zaehler liegen in eigenen
	// Cache-Lines (Go-Atomics, false sharing durch Padding vermieden)
	graphSeq atomic.Uint64
	_        [56]byte
	bar      barrier
	_        [56]byte
	// CurrentChunk ist der Chunk-Stealing-Zaehler des Matmul-Kernels
	CurrentChunk atomic.Int64
	_            [56]byte

	nThreadsMax int32
	nThreadsCur atomic.Int32

	mu   sync.Mutex
	cond *sync.Cond

	paused  bool
	stop    atomic.Bool
	abort   atomic.Bool
	ecFound atomic.Int32 // Status des abgebrochenen Knotens

	poll   int
	prio   Priority
	strict bool
	mask   []bool

	// der aktuelle Auftrag, gesetzt von Kickoff unter mu
	graph *Graph
	plan  *Plan

	wg sync.WaitGroup
}

// NewThreadPool startet die Worker 1..n-1; Worker 0 ist der Aufrufer
func NewThreadPool(params ThreadPoolParams) *ThreadPool {
	n := params.NThreads
	Assertf(n >= 1 && n <= MaxThreads, "invalid thread count %d", n)

	tp := &ThreadPool{
		id:          uuid.NewString(),
		nThreadsMax: int32(n),
		paused:      params.Paused,
		poll:        params.Poll,
		prio:        params.Prio,
		strict:      params.Strict,
		mask:        params.CPUMask,
	}
	tp.cond = sync.NewCond(&tp.mu)
	tp.nThreadsCur.Store(int32(n))

	for ith := 1; ith < n; ith++ {
		tp.wg.Add(1)
		go tp.workerLoop(ith)
	}

	slog.Debug("threadpool created", "id", tp.id, "threads", n, "poll", tp.poll, "prio", int(tp.prio))
	return tp
}

// Pause haelt die Worker nach dem laufenden Graphen an
func (tp *ThreadPool) Pause() {
	tp.mu.Lock()
	tp.paused = true
	tp.mu.Unlock()
}

// Resume laesst angehaltene Worker weiterlaufen
func (tp *ThreadPool) Resume() {
	tp.mu.Lock()
	tp.paused = false
	tp.cond.Broadcast()
	tp.mu.Unlock()
}

// Free beendet die Worker und wartet auf ihren Austritt
func (tp *ThreadPool) Free() {
	if tp == nil {
		return
	}
	tp.stop.Store(true)
	tp.mu.Lock()
	tp.paused = false
	tp.cond.Broadcast()
	tp.mu.Unlock()
	tp.wg.Wait()
	slog.Debug("threadpool freed", "id", tp.id)
}

// kickoff veroeffentlicht den Auftrag und weckt die Worker.
// Das Inkrement von graphSeq ist die seq-cst Uebergabe.
func (tp *ThreadPool) kickoff(graph *Graph, plan *Plan, nThreads int) {
	tp.mu.Lock()
	tp.graph = graph
	tp.plan = plan
	tp.abort.Store(false)
	tp.ecFound.Store(int32(StatusSuccess))
	tp.CurrentChunk.Store(int64(nThreads))
	tp.nThreadsCur.Store(int32(nThreads))
	tp.paused = false
	tp.graphSeq.Add(1)
	tp.cond.Broadcast()
	tp.mu.Unlock()
}

// workerLoop ist der Lebenszyklus der Worker 1..n-1
func (tp *ThreadPool) workerLoop(ith int) {
	defer tp.wg.Done()

	if tp.strict {
		// feste Platzierung: der Worker bleibt auf seinem OS-Thread
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		applyAffinity(ith, tp.mask)
		applyPriority(tp.prio)
	}

	// graphSeq beginnt bei 0; ein Kickoff vor dem ersten Poll darf
	// nicht verpasst werden
	seen := uint64(0)
	for {
		if !tp.waitForWork(&seen) {
			return
		}

		if int32(ith) < tp.nThreadsCur.Load() {
			tp.computeThread(ith)
		}
		// Abschluss-Barriere des Graphen teilt sich jeder aktive
		// Worker mit Worker 0 in computeThread
	}
}

// waitForWork pollt das Spin-Fenster auf eine graphSeq-Aenderung und
// schlaeft danach auf der Condvar. false bedeutet Stop.
func (tp *ThreadPool) waitForWork(seen *uint64) bool {
	for i := 0; i < tp.poll; i++ {
		if tp.stop.Load() {
			return false
		}
		if s := tp.graphSeq.Load(); s != *seen {
			*seen = s
			return true
		}
	}

	tp.mu.Lock()
	for {
		if tp.stop.Load() {
			tp.mu.Unlock()
			return false
		}
		if s := tp.graphSeq.Load(); s != *seen && !tp.paused {
			*seen = s
			tp.mu.Unlock()
			return true
		}
		tp.cond.Wait()
	}
}
