package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taifexflow/config"
	"taifexflow/logger"
)

func testClient() *Client {
	return NewClient(config.HTTPConfig{
		Timeout:           5 * time.Second,
		UserAgent:         "TaifexFlow-test/1.0",
		RequestsPerSecond: 100,
		Burst:             10,
	}, logger.GetLogger())
}

func TestFetchTableParsesFirstTable(t *testing.T) {
	page := `<html><body>
<p>每日行情</p>
<table>
<tr><th>日期</th><th>契約</th><th>多方交易口數</th></tr>
<tr><td>112/04/15</td><td>臺股期貨&nbsp;202404</td><td>1,234</td></tr>
<tr><td>112/04/15</td><td>小型臺指 202404</td><td>567</td></tr>
</table>
<table><tr><th>other</th></tr><tr><td>ignored</td></tr></table>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	snap, err := testClient().FetchTable(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchTable failed: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snap))
	}
	if snap[0]["日期"] != "112/04/15" {
		t.Errorf("unexpected date cell: %v", snap[0]["日期"])
	}
	if snap[0]["契約"] != "臺股期貨 202404" {
		t.Errorf("nbsp not collapsed: %v", snap[0]["契約"])
	}
	if _, ok := snap[0]["other"]; ok {
		t.Errorf("second table leaked into the snapshot")
	}
}

func TestFetchTableNoTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>查無資料</p></body></html>`)
	}))
	defer server.Close()

	_, err := testClient().FetchTable(context.Background(), server.URL)
	if !errors.Is(err, ErrNoTableFound) {
		t.Fatalf("expected ErrNoTableFound, got %v", err)
	}
}

func TestFetchTableHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := testClient().FetchTable(context.Background(), server.URL); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestClientSetsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<table><tr><th>a</th></tr><tr><td>b</td></tr></table>`)
	}))
	defer server.Close()

	if _, err := testClient().FetchTable(context.Background(), server.URL); err != nil {
		t.Fatalf("FetchTable failed: %v", err)
	}
	if gotUA != "TaifexFlow-test/1.0" {
		t.Errorf("unexpected user agent: %q", gotUA)
	}
}
