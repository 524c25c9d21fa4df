package registry

import "strings"

// QueryService provides read-only query methods over a registry. It exists
// so the tool surfaces (MCP, CLI) share one vocabulary of lookups without
// reaching into registry internals.
type QueryService struct {
	reg *Registry
}

// NewQueryService wraps a registry in a read-only query API.
func NewQueryService(reg *Registry) *QueryService {
	return &QueryService{reg: reg}
}

// LookupName returns every record whose declared name equals name exactly.
// Distinct files may declare the same name; all of them are returned, in
// insertion order.
func (q *QueryService) LookupName(name string) []ModuleRecord {
	records := q.reg.Records()
	result := make([]ModuleRecord, 0, 4)
	for _, rec := range records {
		if rec.Name == name {
			result = append(result, rec)
		}
	}
	return result
}

// Search returns records whose name contains query as a case-sensitive
// substring, in insertion order. An empty query returns every record.
func (q *QueryService) Search(query string) []ModuleRecord {
	records := q.reg.Records()
	result := make([]ModuleRecord, 0, len(records))
	for _, rec := range records {
		if strings.Contains(rec.Name, query) {
			result = append(result, rec)
		}
	}
	return result
}

// ResolvePath returns the record for a tracked file path.
func (q *QueryService) ResolvePath(path string) (ModuleRecord, bool) {
	return q.reg.Lookup(path)
}

// List returns up to limit records in insertion order. A limit <= 0 means
// no limit.
func (q *QueryService) List(limit int) []ModuleRecord {
	records := q.reg.Records()
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Stats returns the underlying registry's activity snapshot.
func (q *QueryService) Stats() Stats {
	return q.reg.Stats()
}
