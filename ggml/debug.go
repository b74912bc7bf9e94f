// debug.go - Fatale Assertions fuer Programmierfehler
// Enthaelt: Assert, Assertf, abort

package ggml

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
)

// Assert prueft eine Precondition. Verletzungen sind Programmierfehler
// und brechen den Prozess mit Datei/Zeile und Stacktrace ab.
func Assert(cond bool, msg string) {
	if !cond {
		abort(msg)
	}
}

// Assertf prueft eine Precondition mit formatierter Meldung
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		abort(fmt.Sprintf(format, args...))
	}
}

// abort schreibt die Diagnose samt Aufrufer und Stacktrace und beendet
// den Prozess. Die Engine wird aus vertrauten Schichten aufgerufen;
// ein definierter Abbruch ist einem undefinierten Weiterlauf vorzuziehen.
func abort(msg string) {
	file, line := "?", 0
	if _, f, l, ok := runtime.Caller(2); ok {
		file, line = f, l
	}

	fmt.Fprintf(os.Stderr, "fatal error: %s:%d: %s\n", file, line, msg)
	os.Stderr.Write(debug.Stack())
	slog.Error("fatal error", "file", file, "line", line, "message", msg)
	os.Exit(1)
}
