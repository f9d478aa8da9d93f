package models

// Canonical field names shared by the pipelines.
const (
	FieldDate         = "date"
	FieldContractName = "contract_name"
)

// Record is one row of exchange-published data. It is map-backed because the
// upstream column set differs per pipeline and per source mode; headers
// absent from a column mapping are dropped, never inserted as null.
type Record map[string]any

// String returns the value for key when it is present and textual.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Date returns the record's date field, or "" when absent or non-textual.
func (r Record) Date() string {
	s, _ := r.String(FieldDate)
	return s
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Snapshot is one fetch result: an ordered sequence of records for a query
// date.
type Snapshot []Record
