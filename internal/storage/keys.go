package storage

import "contractgen/internal/schema"

// KeyColumn is one column pair of a foreign key as most catalogs report it:
// one row per column, grouped by constraint name.
type KeyColumn struct {
	Constraint     string
	Table          string
	Column         string
	ReferredSchema string
	ReferredTable  string
	ReferredColumn string
}

// GroupForeignKeys folds per-column rows into one ForeignKeyInfo per
// constraint, keeping first-seen order.
func GroupForeignKeys(rows []KeyColumn) []schema.ForeignKeyInfo {
	out := []schema.ForeignKeyInfo{}
	index := map[string]int{}
	for _, r := range rows {
		i, ok := index[r.Constraint]
		if !ok {
			i = len(out)
			index[r.Constraint] = i
			out = append(out, schema.ForeignKeyInfo{
				ConstraintName:  r.Constraint,
				ReferredTable:   r.ReferredTable,
				ReferredSchema:  r.ReferredSchema,
				Columns:         []string{},
				ReferredColumns: []string{},
			})
		}
		out[i].Columns = append(out[i].Columns, r.Column)
		out[i].ReferredColumns = append(out[i].ReferredColumns, r.ReferredColumn)
	}
	return out
}

// GroupReferencedBy folds per-column rows of foreign keys pointing at a table
// into one ReferencedByInfo per referencing constraint.
func GroupReferencedBy(rows []KeyColumn) []schema.ReferencedByInfo {
	out := []schema.ReferencedByInfo{}
	index := map[string]int{}
	for _, r := range rows {
		key := r.Table + "\x00" + r.Constraint
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, schema.ReferencedByInfo{
				ConstraintName:  r.Constraint,
				Table:           r.Table,
				Columns:         []string{},
				ReferredColumns: []string{},
			})
		}
		out[i].Columns = append(out[i].Columns, r.Column)
		out[i].ReferredColumns = append(out[i].ReferredColumns, r.ReferredColumn)
	}
	return out
}
