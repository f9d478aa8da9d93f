package normalizer

import (
	"fmt"
	"strconv"
	"strings"

	"taifexflow/internal/models"
	"taifexflow/logger"
)

// The exchange publishes dates in the minguo calendar: year counting starts
// at 1912, so a stated year below 1911 needs +1911 to become western.
const minguoOffset = 1911

// LocalizeDate converts a minguo date string into western YYYY/MM/DD.
// Already-western dates pass through unchanged. Strings that look like a
// date but do not parse are returned unchanged along with an error the
// caller logs as a warning.
func LocalizeDate(s string) (string, error) {
	if !strings.Contains(s, "/") {
		return s, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s, fmt.Errorf("unexpected date format %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return s, fmt.Errorf("unparsable year in date %q", s)
	}
	if year < minguoOffset {
		return fmt.Sprintf("%d/%s/%s", year+minguoOffset, parts[1], parts[2]), nil
	}
	return s, nil
}

// LocalizeDates applies LocalizeDate to the date field of every record.
// Parse failures keep the original value and are logged, never fatal.
func LocalizeDates(snap models.Snapshot, log *logger.Entry) models.Snapshot {
	for _, rec := range snap {
		raw, ok := rec.String(models.FieldDate)
		if !ok {
			continue
		}
		localized, err := LocalizeDate(raw)
		if err != nil {
			log.WithFields(logger.Fields{"date": raw}).Warn("unable to localize date")
			continue
		}
		rec[models.FieldDate] = localized
	}
	return snap
}
