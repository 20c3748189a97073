package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingFields maps an API field name to the column it sorts on.
type OrderingFields map[string]string

// Clean keeps the orderings whose field is allowed, translated to their column.
// fallback is used when nothing is left.
func (fields OrderingFields) Clean(orderings []DBOrdering, fallback ...DBOrdering) []DBOrdering {
	cleaned := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := fields[ord.Field]; ok {
			cleaned = append(cleaned, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	if len(cleaned) == 0 {
		return fallback
	}
	return cleaned
}

// OrderByClause renders orderings as a SQL "ORDER BY" clause (empty when there are none).
func OrderByClause(orderings []DBOrdering) string {
	if len(orderings) == 0 {
		return ""
	}
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
