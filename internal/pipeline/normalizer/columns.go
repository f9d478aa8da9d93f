package normalizer

import (
	"taifexflow/internal/models"
	"taifexflow/logger"
)

// ColumnMap pairs a source table header with its canonical field name.
type ColumnMap struct {
	Source    string
	Canonical string
}

// MapColumns renames source headers to canonical field names. Headers not
// covered by the mapping are dropped; mapped headers missing from the data
// are logged as warnings and skipped, never inserted as null.
func MapColumns(snap models.Snapshot, columns []ColumnMap, log *logger.Entry) models.Snapshot {
	if len(snap) == 0 {
		return snap
	}

	for _, col := range columns {
		if _, ok := snap[0][col.Source]; !ok {
			log.WithFields(logger.Fields{"header": col.Source}).Warn("expected header missing from table")
		}
	}

	out := make(models.Snapshot, 0, len(snap))
	for _, rec := range snap {
		mapped := models.Record{}
		for _, col := range columns {
			if v, ok := rec[col.Source]; ok {
				mapped[col.Canonical] = v
			}
		}
		out = append(out, mapped)
	}
	return out
}
