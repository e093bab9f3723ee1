// Package enginelog provides non-fatal operator diagnostics for the battle
// engine: catalog build warnings and swallowed fxlang script errors. It is
// never used on the per-turn hot path; observable battle events always go
// through the structured battlelog.Log instead.
package enginelog

import "log"

// Warnf logs a non-fatal warning, mirroring the teacher's
// `log.Printf("WARNING: ...")` convention in its registry bootstrap.
func Warnf(format string, args ...any) {
	log.Printf("WARNING: "+format, args...)
}
