// Package registry maintains the in-memory mapping between workspace file
// paths and the module names they declare. It is the single authoritative
// store behind both the completion surfaces and the file-event pipeline.
package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Registry is the process-wide module index.
//
// **Architecture:**
//   - Arena of records keyed by stable ModuleID (ids assigned at insertion,
//     never reused)
//   - Insertion-order slice of ids for ordered, deterministic iteration
//   - Inverse map path → id for O(1) path lookups
//
// Keying the inverse map by stable id rather than by position means a
// removal never has to renumber other entries: positions are derived from
// the order slice on demand, so the classic stale-index-after-splice bug
// cannot occur.
//
// **Thread Safety:**
//   - sync.RWMutex guards all state; mutations take the write lock
//   - Reconcile performs its whole read-modify-write under one lock
//     acquisition, so interleaved calls for the same path serialize and the
//     last completed call wins
//   - Activity counters are atomic for lock-free stat reads
type Registry struct {
	mu      sync.RWMutex
	nextID  ModuleID
	records map[ModuleID]*ModuleRecord
	order   []ModuleID
	byPath  map[string]ModuleID

	adds     atomic.Int64
	renames  atomic.Int64
	removals atomic.Int64

	logger *slog.Logger
}

// New creates an empty registry. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		records: make(map[ModuleID]*ModuleRecord, 256),
		byPath:  make(map[string]ModuleID, 256),
		logger:  logger,
	}
}

// Lookup returns the record currently associated with path.
func (r *Registry) Lookup(path string) (ModuleRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPath[path]
	if !ok {
		return ModuleRecord{}, false
	}
	return *r.records[id], true
}

// Add inserts a record for a path that is not yet tracked.
//
// Returns the new record's id, or false if the path is already tracked
// (nothing is inserted in that case; callers are expected to Lookup first,
// and Reconcile does).
func (r *Registry) Add(name, path string) (ModuleID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPath[path]; exists {
		return 0, false
	}
	return r.addLocked(name, path), true
}

// Rename replaces the name stored under id. The path association is
// untouched. Returns false if the id no longer resolves.
func (r *Registry) Rename(id ModuleID, newName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	rec.Name = newName
	r.renames.Add(1)
	return true
}

// Remove drops the record for path. Later records keep their ids; only
// their derived positions shift. Returns false if the path is not tracked.
func (r *Registry) Remove(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPath[path]
	if !ok {
		return false
	}
	r.removeLocked(path, id)
	return true
}

// Reconcile brings the registry's entry for path in line with the file's
// currently declared name. An empty declaredName means the file declares
// nothing (missing, unreadable, or no annotation) and clears any entry.
//
// The decision table, evaluated atomically under the write lock:
//
//	tracked? declared?  action
//	   no        no     nothing
//	   yes       no     remove
//	   yes   same name  nothing
//	   yes   new name   rename in place
//	   no        yes    add
//
// Calling Reconcile twice with the same arguments is a no-op the second
// time, and for a given path the last completed call determines the final
// entry regardless of how earlier calls interleaved.
func (r *Registry) Reconcile(path, declaredName string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, tracked := r.byPath[path]

	switch {
	case !tracked && declaredName == "":
		return OutcomeNone

	case tracked && declaredName == "":
		r.removeLocked(path, id)
		r.logger.Debug("module removed", "path", path)
		return OutcomeRemoved

	case tracked:
		rec := r.records[id]
		if rec.Name == declaredName {
			return OutcomeNone
		}
		old := rec.Name
		rec.Name = declaredName
		r.renames.Add(1)
		r.logger.Debug("module renamed", "path", path, "from", old, "to", declaredName)
		return OutcomeRenamed

	default:
		r.addLocked(declaredName, path)
		r.logger.Debug("module added", "path", path, "name", declaredName)
		return OutcomeAdded
	}
}

// Names returns the declared names in insertion order. The slice is a
// snapshot; callers may keep it across later mutations.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.records[id].Name)
	}
	return names
}

// Records returns a snapshot of all records in insertion order.
func (r *Registry) Records() []ModuleRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModuleRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}
	return out
}

// Paths returns every tracked file path, in insertion order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.order))
	for _, id := range r.order {
		paths = append(paths, r.records[id].Path)
	}
	return paths
}

// Len returns the number of tracked records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear drops every record. Ids are not reused afterwards.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.order)
	r.records = make(map[ModuleID]*ModuleRecord, 256)
	r.byPath = make(map[string]ModuleID, 256)
	r.order = r.order[:0]
	r.removals.Add(int64(n))
}

// Stats returns a snapshot of activity counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	modules := len(r.order)
	r.mu.RUnlock()

	return Stats{
		Modules:  modules,
		Adds:     r.adds.Load(),
		Renames:  r.renames.Load(),
		Removals: r.removals.Load(),
	}
}

// addLocked inserts a record. Caller holds the write lock and has verified
// the path is untracked.
func (r *Registry) addLocked(name, path string) ModuleID {
	r.nextID++
	id := r.nextID
	r.records[id] = &ModuleRecord{ID: id, Name: name, Path: path}
	r.order = append(r.order, id)
	r.byPath[path] = id
	r.adds.Add(1)
	return id
}

// removeLocked drops a record. Caller holds the write lock and has resolved
// id from byPath in the same critical section.
func (r *Registry) removeLocked(path string, id ModuleID) {
	delete(r.records, id)
	delete(r.byPath, path)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.removals.Add(1)
}
