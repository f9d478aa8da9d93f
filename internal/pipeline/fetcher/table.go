package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"taifexflow/internal/models"
	"taifexflow/logger"
)

// ErrNoTableFound indicates the rendering endpoint returned a page with zero
// tables. For the institutional pipeline this triggers the CSV fallback.
var ErrNoTableFound = errors.New("no table found in response")

// FetchTable retrieves the table-rendering endpoint and parses the first
// HTML table into a snapshot keyed by the source headers.
func (c *Client) FetchTable(ctx context.Context, rawURL string) (models.Snapshot, error) {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	logger.IncrementTableFetch(len(body))

	snap, err := parseFirstTable(body)
	if err != nil {
		return nil, err
	}

	c.log.WithComponent("fetcher").WithFields(logger.Fields{
		"url":     rawURL,
		"records": len(snap),
	}).Info("parsed table")

	return snap, nil
}

// parseFirstTable extracts the first <table> of an HTML document. The first
// row supplies the headers, every following row becomes a record.
func parseFirstTable(body []byte) (models.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTableFound
	}

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, ErrNoTableFound
	}

	var headers []string
	rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, cellText(cell))
	})
	if len(headers) == 0 {
		return nil, ErrNoTableFound
	}

	snap := models.Snapshot{}
	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("th,td")
		if cells.Length() == 0 {
			return
		}
		rec := models.Record{}
		cells.Each(func(j int, cell *goquery.Selection) {
			if j < len(headers) {
				rec[headers[j]] = cellText(cell)
			}
		})
		snap = append(snap, rec)
	})

	return snap, nil
}

// cellText collapses the whitespace the exchange pads its cells with,
// including non-breaking spaces.
func cellText(cell *goquery.Selection) string {
	text := strings.ReplaceAll(cell.Text(), "\u00a0", " ")
	return strings.Join(strings.Fields(text), " ")
}
