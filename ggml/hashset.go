// hashset.go - Besuchs-Menge ueber Tensor-Identitaet
// Enthaelt: hashSet mit Primzahl-Tabelle, Belegungs-Bitset und
// linearer Sondierung
//
// Die Menge dient dem Graph-Aufbau als Besuchs-Tracker und dem
// Backward-Builder als Schluesselmenge. Identitaet ist die Adresse des
// Deskriptors; der Hash verwirft deren Ausrichtungs-Nullbits.

package ggml

import "unsafe"

type hashInsertResult int

const (
	hashInsertOK hashInsertResult = iota
	hashInsertAlready
	hashInsertFull
)

type hashSet struct {
	size int
	keys []*Tensor
	used []uint32
}

// nextPrime liefert die kleinste Primzahl >= n
func nextPrime(n int) int {
	if n < 2 {
		return 2
	}
	isPrime := func(v int) bool {
		for d := 2; d*d <= v; d++ {
			if v%d == 0 {
				return false
			}
		}
		return true
	}
	for !isPrime(n) {
		n++
	}
	return n
}

// newHashSet erstellt eine Menge mit Primzahl-Tabelle >= minSize
func newHashSet(minSize int) *hashSet {
	size := nextPrime(minSize)
	return &hashSet{
		size: size,
		keys: make([]*Tensor, size),
		used: make([]uint32, (size+31)/32),
	}
}

// hashPtr bildet die Deskriptor-Adresse ab; die niederwertigen
// Nullbits der Heap-Ausrichtung werden verworfen
func hashPtr(t *Tensor) uint64 {
	return uint64(uintptr(unsafe.Pointer(t))) >> 4
}

func (h *hashSet) isUsed(i int) bool {
	return h.used[i/32]&(1<<(i%32)) != 0
}

func (h *hashSet) setUsed(i int) {
	h.used[i/32] |= 1 << (i % 32)
}

// find liefert den Slot von t oder -1
func (h *hashSet) find(t *Tensor) int {
	i := int(hashPtr(t) % uint64(h.size))
	for k := 0; k < h.size; k++ {
		if !h.isUsed(i) {
			return -1
		}
		if h.keys[i] == t {
			return i
		}
		i = (i + 1) % h.size
	}
	return -1
}

// contains meldet, ob t bereits eingetragen ist
func (h *hashSet) contains(t *Tensor) bool {
	return h.find(t) >= 0
}

// insert traegt t ein und meldet OK, ALREADY oder FULL
func (h *hashSet) insert(t *Tensor) hashInsertResult {
	i := int(hashPtr(t) % uint64(h.size))
	for k := 0; k < h.size; k++ {
		if !h.isUsed(i) {
			h.keys[i] = t
			h.setUsed(i)
			return hashInsertOK
		}
		if h.keys[i] == t {
			return hashInsertAlready
		}
		i = (i + 1) % h.size
	}
	return hashInsertFull
}

// remove entfernt t; Nachfolger der Sondierungskette werden neu
// eingefuegt, damit find stabil bleibt
func (h *hashSet) remove(t *Tensor) bool {
	i := h.find(t)
	if i < 0 {
		return false
	}

	h.keys[i] = nil
	h.used[i/32] &^= 1 << (i % 32)

	j := (i + 1) % h.size
	for h.isUsed(j) {
		moved := h.keys[j]
		h.keys[j] = nil
		h.used[j/32] &^= 1 << (j % 32)
		h.insert(moved)
		j = (j + 1) % h.size
	}
	return true
}

// reset leert die Menge, behaelt die Tabelle
func (h *hashSet) reset() {
	clear(h.used)
	clear(h.keys)
}
