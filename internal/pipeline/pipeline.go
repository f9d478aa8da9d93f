package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"taifexflow/internal/models"
	"taifexflow/internal/pipeline/fetcher"
	"taifexflow/internal/pipeline/normalizer"
	"taifexflow/internal/writer"
	"taifexflow/logger"
)

// Pipeline runs one crawl end to end: freshness gate, fetch with optional
// CSV fallback, normalization, persistence.
type Pipeline struct {
	spec      Spec
	client    *fetcher.Client
	artifacts *writer.ArtifactWriter
	gate      *Gate
	now       func() time.Time
	log       *logger.Entry
}

func New(spec Spec, client *fetcher.Client, artifacts *writer.ArtifactWriter, log *logger.Log) *Pipeline {
	entry := log.WithComponent(spec.Category)
	return &Pipeline{
		spec:      spec,
		client:    client,
		artifacts: artifacts,
		gate:      NewGate(artifacts.LatestPath(spec.Category), spec.Freshness, entry),
		now:       time.Now,
		log:       entry,
	}
}

// Run executes one crawl and returns the path of the resulting artifact.
// When today's data is already persisted, it returns the existing latest
// path without touching the network.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	if fetch, path := p.gate.ShouldFetch(); !fetch {
		return path, nil
	}

	path, err := p.runPrimary(ctx)
	if err == nil {
		return path, nil
	}

	if p.spec.Fallback == nil {
		p.log.WithError(err).Error("table fetch failed")
		return "", err
	}

	p.log.WithError(err).Warn("table fetch failed; falling back to delimited download")

	path, ferr := p.runFallback(ctx)
	if ferr != nil {
		p.log.WithError(ferr).Error("delimited download fallback failed")
		return "", fmt.Errorf("primary fetch: %v; fallback: %w", err, ferr)
	}
	return path, nil
}

// runPrimary fetches the rendered table and persists the normalized
// snapshot as the pipeline's canonical artifact.
func (p *Pipeline) runPrimary(ctx context.Context) (string, error) {
	snap, err := p.client.FetchTable(ctx, p.spec.TableURL)
	if err != nil {
		return "", err
	}

	p.log.WithFields(logger.Fields{"records": len(snap)}).Info("table fetched")

	snap = p.normalize(snap)

	return p.artifacts.WriteSnapshot(ctx, p.spec.Category, snap, true)
}

// runFallback posts today's query to the download endpoint, persists the
// normalized snapshot under the fallback category and keeps the decoded
// payload as a diagnostic companion. The latest artifact stays untouched.
func (p *Pipeline) runFallback(ctx context.Context) (string, error) {
	fb := p.spec.Fallback
	today := p.now().Format(dateLayout)

	form := url.Values{
		"queryStartDate": {today},
		"queryEndDate":   {today},
		"commodityId":    {fb.CommodityID},
	}

	res, err := p.client.FetchCSV(ctx, fb.URL, form)
	if err != nil {
		return "", err
	}

	p.log.WithFields(logger.Fields{"records": len(res.Snapshot)}).Info("delimited download fetched")

	snap := p.normalize(res.Snapshot)

	path, err := p.artifacts.WriteSnapshot(ctx, fb.Category, snap, false)
	if err != nil {
		return "", err
	}

	if _, err := p.artifacts.WriteRaw(ctx, fb.RawCategory, "csv", []byte(res.Raw)); err != nil {
		return "", err
	}

	return path, nil
}

// normalize applies the shared transformation chain: canonical columns,
// instrument filter, date localization, numeric cleanup.
func (p *Pipeline) normalize(snap models.Snapshot) models.Snapshot {
	snap = normalizer.MapColumns(snap, p.spec.Columns, p.log)
	if p.spec.ContractField != "" {
		snap = normalizer.FilterInstrument(snap, p.spec.ContractField, p.spec.TargetContract, p.log)
	}
	snap = normalizer.LocalizeDates(snap, p.log)
	snap = normalizer.CleanNumerics(snap, p.spec.CountFields, p.spec.RatioFields)
	return snap
}
