package pipeline

import (
	"os"
	"time"

	"taifexflow/internal/models"
	"taifexflow/logger"
)

const dateLayout = "2006/01/02"

// Gate decides whether a pipeline needs to fetch at all by inspecting the
// previously persisted latest artifact. Every read problem fails soft:
// a broken artifact just means we fetch again.
type Gate struct {
	latestPath string
	mode       FreshnessMode
	now        func() time.Time
	log        *logger.Entry
}

func NewGate(latestPath string, mode FreshnessMode, log *logger.Entry) *Gate {
	return &Gate{
		latestPath: latestPath,
		mode:       mode,
		now:        time.Now,
		log:        log,
	}
}

// ShouldFetch reports whether the pipeline must fetch. When today's data is
// already persisted it returns false together with the latest artifact
// path.
func (g *Gate) ShouldFetch() (bool, string) {
	data, err := os.ReadFile(g.latestPath)
	if err != nil {
		if os.IsNotExist(err) {
			g.log.Info("no previous data found; performing first crawl")
		} else {
			g.log.WithError(err).Warn("failed to read latest artifact; fetching")
		}
		return true, ""
	}

	snap, err := models.DecodeSnapshot(data)
	if err != nil {
		g.log.WithError(err).Warn("failed to parse latest artifact; fetching")
		return true, ""
	}
	if len(snap) == 0 {
		g.log.Warn("latest artifact is empty; fetching")
		return true, ""
	}

	latest, ok := representativeDate(snap, g.mode)
	if !ok {
		g.log.Warn("unable to determine date of latest artifact; fetching")
		return true, ""
	}

	today := g.now()
	if sameDay(latest, today) {
		g.log.WithFields(logger.Fields{
			"date": latest.Format(dateLayout),
			"path": g.latestPath,
		}).Info("today's data already persisted; skipping fetch")
		return false, g.latestPath
	}

	g.log.WithFields(logger.Fields{
		"latest": latest.Format(dateLayout),
		"today":  today.Format(dateLayout),
	}).Info("persisted data is stale; fetching")
	return true, ""
}

// representativeDate extracts the artifact's date according to the
// freshness mode. Dates are compared as parsed dates, not strings, so a
// format drift upstream cannot silently break the comparison.
func representativeDate(snap models.Snapshot, mode FreshnessMode) (time.Time, bool) {
	switch mode {
	case MaxRecordDate:
		var newest time.Time
		found := false
		for _, rec := range snap {
			d, err := time.ParseInLocation(dateLayout, rec.Date(), time.Local)
			if err != nil {
				continue
			}
			if !found || d.After(newest) {
				newest = d
				found = true
			}
		}
		return newest, found
	default:
		d, err := time.ParseInLocation(dateLayout, snap[0].Date(), time.Local)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
