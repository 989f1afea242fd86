package ward

import (
	"strings"
)

// DefaultCategories is the category set used when none is configured.
var DefaultCategories = []string{
	"Sala", "Materiales", "Cultivos", "Interconsulta", "Alta",
	"Rx", "Laboratorio", "TNM", "POI", "PreQx", "CxHoy",
}

// CategorySet is the fixed set of accepted task categories. Matching is exact.
type CategorySet struct {
	names []string
	index map[string]struct{}
}

// NewCategorySet builds a set from names, ignoring blanks and duplicates.
// An empty input yields DefaultCategories.
func NewCategorySet(names ...string) CategorySet {
	if len(names) == 0 {
		names = DefaultCategories
	}
	cs := CategorySet{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := cs.index[n]; ok {
			continue
		}
		cs.index[n] = struct{}{}
		cs.names = append(cs.names, n)
	}
	return cs
}

// Contains reports whether name is an accepted category.
func (cs CategorySet) Contains(name string) bool {
	_, ok := cs.index[name]
	return ok
}

// Names returns the categories in configured order.
func (cs CategorySet) Names() []string {
	out := make([]string, len(cs.names))
	copy(out, cs.names)
	return out
}

// ParseStatus maps a wire value to a Status. The legacy values "en curso" and
// "terminada" are accepted as open and done.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "en curso":
		return StatusOpen, nil
	case "done", "terminada":
		return StatusDone, nil
	}
	return "", invalid("status %q must be open or done", s)
}

func normalizePatient(name string, room *string) (string, *string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, invalid("patient name is required")
	}
	return name, nilIfBlank(room), nil
}

func normalizeTask(cats CategorySet, description, category string, patientID *string) (string, *string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", nil, invalid("task description is required")
	}
	if !cats.Contains(category) {
		return "", nil, invalid("unknown category %q", category)
	}
	return description, nilIfBlank(patientID), nil
}

func nilIfBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
