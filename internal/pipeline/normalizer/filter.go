package normalizer

import (
	"strings"

	"taifexflow/internal/models"
	"taifexflow/logger"
)

// FilterInstrument derives contract_name from the leading whitespace token
// of the raw contract description and keeps only records matching the
// target instrument. When nothing matches, the unfiltered snapshot is
// returned and the distinct names observed are logged: an empty artifact
// would hide the upstream change that caused the mismatch.
func FilterInstrument(snap models.Snapshot, descField, target string, log *logger.Entry) models.Snapshot {
	for _, rec := range snap {
		desc, ok := rec[descField]
		if !ok {
			continue
		}
		if s, isString := desc.(string); isString {
			if fields := strings.Fields(s); len(fields) > 0 {
				rec[models.FieldContractName] = fields[0]
			} else {
				rec[models.FieldContractName] = s
			}
		} else {
			rec[models.FieldContractName] = desc
		}
	}

	filtered := make(models.Snapshot, 0, len(snap))
	for _, rec := range snap {
		if name, _ := rec.String(models.FieldContractName); name == target {
			filtered = append(filtered, rec)
		}
	}

	if len(filtered) == 0 {
		log.WithFields(logger.Fields{
			"target":    target,
			"contracts": distinctContractNames(snap),
		}).Warn("target instrument not found; keeping unfiltered snapshot")
		return snap
	}

	log.WithFields(logger.Fields{"target": target, "records": len(filtered)}).Info("filtered to target instrument")
	return filtered
}

func distinctContractNames(snap models.Snapshot) []string {
	seen := map[string]struct{}{}
	names := []string{}
	for _, rec := range snap {
		name, ok := rec.String(models.FieldContractName)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
