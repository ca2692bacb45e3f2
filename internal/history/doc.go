// Package history records panel state changes to the local SQLite store.
//
// The Store is wired into the device manager as a state listener: every
// confirmed state change is persisted as a JSON snapshot, giving a local
// audit trail that survives restarts and works when no time-series
// database is configured.
//
// Entries are read newest-first with a clamped limit, and old entries can
// be pruned by age.
package history
