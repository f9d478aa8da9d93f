package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"taifexflow/internal/models"
	"taifexflow/logger"
)

var (
	// ErrNoDataAvailable indicates the download endpoint answered with its
	// "no data for this query" message instead of a payload.
	ErrNoDataAvailable = errors.New("exchange reported no data for query")

	// ErrInvalidDateRange indicates the download endpoint rejected the
	// query date range.
	ErrInvalidDateRange = errors.New("exchange reported invalid date range")
)

// Big5-encoded sentinel byte sequences the download endpoint embeds in its
// error responses. Matching happens on the raw bytes, before any decoding.
var (
	noDataSentinel      = []byte{0xb7, 0x6a, 0xb5, 0x4c, 0xb8, 0xea, 0xae, 0xc6}
	invalidDateSentinel = []byte{0xa6, 0xdc, 0xb8, 0xb9, 0xae, 0xc9, 0xb6, 0xa1, 0xc3, 0xf8, 0xbf, 0xf2}
)

// CSVResult carries a parsed fallback snapshot together with the decoded
// payload, which is persisted verbatim as a diagnostic artifact.
type CSVResult struct {
	Snapshot models.Snapshot
	Raw      string
}

// FetchCSV posts the query form to the delimited-download endpoint, checks
// the raw response for the exchange's error sentinels, then decodes the
// Big5 payload and parses it into a snapshot keyed by the CSV headers.
func (c *Client) FetchCSV(ctx context.Context, rawURL string, form url.Values) (*CSVResult, error) {
	body, err := c.PostForm(ctx, rawURL, form)
	if err != nil {
		return nil, err
	}
	logger.IncrementCSVFetch(len(body))

	if bytes.Contains(body, noDataSentinel) {
		return nil, ErrNoDataAvailable
	}
	if bytes.Contains(body, invalidDateSentinel) {
		return nil, ErrInvalidDateRange
	}

	decoded := decodeBig5(body)

	snap, err := parseCSV(decoded)
	if err != nil {
		return nil, err
	}

	c.log.WithComponent("fetcher").WithFields(logger.Fields{
		"url":     rawURL,
		"records": len(snap),
	}).Info("parsed delimited download")

	return &CSVResult{Snapshot: snap, Raw: decoded}, nil
}

// decodeBig5 converts a Big5 payload to UTF-8. Undecodable bytes are
// dropped rather than kept as replacement runes, matching the lossy decode
// the download endpoint has always been consumed with.
func decodeBig5(body []byte) string {
	decoded, _, err := transform.Bytes(traditionalchinese.Big5.NewDecoder(), body)
	if err != nil {
		return strings.ReplaceAll(string(body), "�", "")
	}
	return strings.ReplaceAll(string(decoded), "�", "")
}

// parseCSV turns the decoded payload into records. The first row supplies
// the headers; short rows keep only the columns they have.
func parseCSV(payload string) (models.Snapshot, error) {
	r := csv.NewReader(strings.NewReader(payload))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty csv payload")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	snap := models.Snapshot{}
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		rec := models.Record{}
		for i, cell := range row {
			if i < len(headers) && headers[i] != "" {
				rec[headers[i]] = strings.TrimSpace(cell)
			}
		}
		if len(rec) > 0 {
			snap = append(snap, rec)
		}
	}

	return snap, nil
}
