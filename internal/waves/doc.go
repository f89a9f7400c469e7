// Package waves manages survey wave definitions and wave-pair resolution.
//
// A longitudinal survey measures the same participants repeatedly; each
// measurement round is a wave. Every wave has a number, a display name
// (Wave1, Wave2, ...) and a column prefix (W1_, W2_, ...) that namespaces
// its variables inside the processed dataset, so the variable "happiness"
// measured at wave 3 lives in the column "W3_happiness".
//
// The package provides three pieces:
//
//   - Registry: the authoritative set of registered waves, loaded from a
//     DefinitionStore and safe for concurrent use. The registry is owned
//     by the composition root and injected into whatever needs it; there
//     is no package-level instance.
//   - Resolver: turns a wave-pair token such as "w1_to_w3" or "all_waves"
//     into a concrete source/target wave pair.
//   - ColumnPair: derives the dataset column names for a variable from a
//     resolved pair.
//
// Failures are typed: an out-of-range wave yields *UnknownWaveError and a
// malformed or unsatisfiable token yields *ConfigError, both carrying the
// registered wave numbers so callers can report what would have worked.
package waves
