//go:build !linux

// threadpool_other.go - Plattformen ohne Affinitaets-API
// Enthaelt: no-op Varianten von applyAffinity und applyPriority

package ggml

func applyAffinity(int, []bool) {}

func applyPriority(Priority) {}
