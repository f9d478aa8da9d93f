package normalizer

import (
	"strings"

	"taifexflow/internal/models"
)

// CleanNumber strips thousands-separator commas from a textual value.
// Non-textual values pass through unchanged.
func CleanNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return strings.ReplaceAll(s, ",", "")
}

// CleanRatio strips commas and a trailing percent sign from a textual
// value. Non-textual values pass through unchanged.
func CleanRatio(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), "%")
}

// CleanNumerics applies the numeric cleanup to every record: countFields
// lose their commas, ratioFields additionally lose a trailing percent sign.
func CleanNumerics(snap models.Snapshot, countFields, ratioFields []string) models.Snapshot {
	for _, rec := range snap {
		for _, f := range countFields {
			if v, ok := rec[f]; ok {
				rec[f] = CleanNumber(v)
			}
		}
		for _, f := range ratioFields {
			if v, ok := rec[f]; ok {
				rec[f] = CleanRatio(v)
			}
		}
	}
	return snap
}
