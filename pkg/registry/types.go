package registry

// ModuleID is a stable, opaque identifier assigned to a record at insertion.
// IDs are never reused within a registry's lifetime, so holding one across
// later removals is always safe (it simply stops resolving).
type ModuleID uint64

// ModuleRecord associates a declared module name with the file that
// declares it. The same name may be declared by several files; each
// declaration gets its own record.
type ModuleRecord struct {
	ID   ModuleID `json:"id"`
	Name string   `json:"name"`
	Path string   `json:"path"`
}

// Outcome describes what a Reconcile call did to the registry.
type Outcome int

const (
	// OutcomeNone means the registry already reflected the declared state.
	OutcomeNone Outcome = iota

	// OutcomeAdded means a new record was inserted for the path.
	OutcomeAdded

	// OutcomeRenamed means the path's existing record got a new name.
	OutcomeRenamed

	// OutcomeRemoved means the path's record was dropped.
	OutcomeRemoved
)

// String returns a short lowercase label for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeRenamed:
		return "renamed"
	case OutcomeRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Stats is a point-in-time snapshot of registry activity counters.
type Stats struct {
	Modules  int   `json:"modules"`
	Adds     int64 `json:"adds"`
	Renames  int64 `json:"renames"`
	Removals int64 `json:"removals"`
}
