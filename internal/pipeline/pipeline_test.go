package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"taifexflow/config"
	"taifexflow/internal/models"
	"taifexflow/internal/pipeline/fetcher"
	"taifexflow/internal/writer"
	"taifexflow/logger"
)

const institutionalPage = `<html><body>
<table>
<tr><th>日期</th><th>身份別</th><th>多方交易口數</th><th>多方交易契約金額(千元)</th><th>空方交易口數</th><th>空方交易契約金額(千元)</th><th>多空交易口數淨額</th><th>多空交易契約金額淨額(千元)</th><th>多方未平倉口數</th><th>多方未平倉契約金額(千元)</th><th>空方未平倉口數</th><th>空方未平倉契約金額(千元)</th><th>多空未平倉口數淨額</th><th>多空未平倉契約金額淨額(千元)</th><th>契約</th></tr>
<tr><td>112/04/15</td><td>自然人</td><td>1,234</td><td>5,678</td><td>1,111</td><td>2,222</td><td>123</td><td>3,456</td><td>7,890</td><td>9,999</td><td>8,888</td><td>7,777</td><td>1,112</td><td>2,223</td><td>臺股期貨 202404</td></tr>
<tr><td>112/04/15</td><td>自然人</td><td>99</td><td>88</td><td>77</td><td>66</td><td>55</td><td>44</td><td>33</td><td>22</td><td>11</td><td>10</td><td>9</td><td>8</td><td>小型臺指 202404</td></tr>
</table>
</body></html>`

func testHTTPClient() *fetcher.Client {
	return fetcher.NewClient(config.HTTPConfig{
		Timeout:           5 * time.Second,
		UserAgent:         "TaifexFlow-test/1.0",
		RequestsPerSecond: 100,
		Burst:             10,
	}, logger.GetLogger())
}

func testConfig(tableURL, csvURL string) *config.Config {
	return &config.Config{
		Sources: config.SourcesConfig{
			Institutional: config.InstitutionalSourceConfig{
				TableURL:       tableURL,
				CSVURL:         csvURL,
				CommodityID:    "TXF",
				TargetContract: "臺股期貨",
			},
			PCRatio: config.PCRatioSourceConfig{TableURL: tableURL},
		},
	}
}

func newTestPipeline(t *testing.T, spec Spec, dataDir string) *Pipeline {
	t.Helper()
	artifacts := writer.NewArtifactWriter(dataDir, nil, logger.GetLogger())
	p := New(spec, testHTTPClient(), artifacts, logger.GetLogger())
	p.now = func() time.Time { return testToday }
	p.gate.now = p.now
	return p
}

func TestInstitutionalPipelineEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, institutionalPage)
	}))
	defer server.Close()

	dataDir := t.TempDir()
	p := newTestPipeline(t, InstitutionalSpec(testConfig(server.URL, server.URL)), dataDir)

	path, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	snap, err := models.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}

	if len(snap) != 1 {
		t.Fatalf("expected only the target instrument row, got %d records", len(snap))
	}
	rec := snap[0]
	if rec["date"] != "2023/04/15" {
		t.Errorf("minguo date not localized: %v", rec["date"])
	}
	if rec["contract_name"] != "臺股期貨" {
		t.Errorf("unexpected contract_name: %v", rec["contract_name"])
	}
	if rec["investor_type"] != "自然人" {
		t.Errorf("unexpected investor_type: %v", rec["investor_type"])
	}
	if rec["long_trade_volume"] != "1234" {
		t.Errorf("thousands separator not stripped: %v", rec["long_trade_volume"])
	}
	if rec["net_oi_value"] != "2223" {
		t.Errorf("value field not cleaned: %v", rec["net_oi_value"])
	}

	if _, err := os.Stat(filepath.Join(dataDir, "institutional_latest.json")); err != nil {
		t.Errorf("latest artifact missing: %v", err)
	}
}

func TestPipelineSkipsWhenFresh(t *testing.T) {
	hits := 0
	minguoToday := fmt.Sprintf("%d/04/15", testToday.Year()-1911)
	page := fmt.Sprintf(`<table>
<tr><th>日期</th><th>買權成交量</th><th>賣權成交量</th><th>買賣權成交量比率%%</th><th>買權未平倉量</th><th>賣權未平倉量</th><th>買賣權未平倉量比率%%</th></tr>
<tr><td>%s</td><td>1,000</td><td>900</td><td>90.0%%</td><td>2,000</td><td>1,800</td><td>90.0%%</td></tr>
</table>`, minguoToday)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	dataDir := t.TempDir()
	spec := PCRatioSpec(testConfig(server.URL, server.URL))

	first := newTestPipeline(t, spec, dataDir)
	firstPath, err := first.Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	second := newTestPipeline(t, spec, dataDir)
	secondPath, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if hits != 1 {
		t.Fatalf("expected exactly one fetch, got %d", hits)
	}
	if secondPath != filepath.Join(dataDir, "pc_ratio_latest.json") {
		t.Errorf("second run should return the latest path, got %s", secondPath)
	}
	if firstPath == secondPath {
		t.Errorf("first run should return the timestamped path, got %s", firstPath)
	}

	data, err := os.ReadFile(secondPath)
	if err != nil {
		t.Fatalf("latest artifact missing: %v", err)
	}
	snap, err := models.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if snap[0]["put_call_volume_ratio_pct"] != "90.0" {
		t.Errorf("ratio field not cleaned: %v", snap[0]["put_call_volume_ratio_pct"])
	}
}

func TestInstitutionalPipelineFallsBack(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>服務暫停</p></body></html>`)
	}))
	defer primary.Close()

	payload := "日期,身份別,多方交易口數,契約\n2023/04/15,自然人,1234,臺股期貨\n"
	encoded, _, err := transform.Bytes(traditionalchinese.Big5.NewEncoder(), []byte(payload))
	if err != nil {
		t.Fatalf("big5 encode: %v", err)
	}

	fallbackHits := 0
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("queryStartDate"); got != "2023/04/15" {
			t.Errorf("unexpected queryStartDate: %q", got)
		}
		w.Write(encoded)
	}))
	defer fallback.Close()

	dataDir := t.TempDir()
	p := newTestPipeline(t, InstitutionalSpec(testConfig(primary.URL, fallback.URL)), dataDir)

	path, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fallbackHits != 1 {
		t.Fatalf("expected one fallback fetch, got %d", fallbackHits)
	}
	if !strings.Contains(filepath.Base(path), "institutional_csv_") {
		t.Errorf("fallback artifact should use the csv category: %s", path)
	}

	raws, err := filepath.Glob(filepath.Join(dataDir, "institutional_raw_*.csv"))
	if err != nil || len(raws) != 1 {
		t.Fatalf("expected one raw companion artifact, got %v (err %v)", raws, err)
	}

	if _, err := os.Stat(filepath.Join(dataDir, "institutional_latest.json")); !os.IsNotExist(err) {
		t.Errorf("fallback run must not update the latest artifact")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	snap, err := models.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected 1 record, got %d", len(snap))
	}
	if snap[0]["contract_name"] != "臺股期貨" {
		t.Errorf("fallback snapshot not normalized: %v", snap[0])
	}
}

func TestRatioPipelineHasNoFallback(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `<html><body>no tables here</body></html>`)
	}))
	defer server.Close()

	p := newTestPipeline(t, PCRatioSpec(testConfig(server.URL, server.URL)), t.TempDir())

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected failure when the ratio table is missing")
	}
	if hits != 1 {
		t.Fatalf("ratio pipeline must not retry, got %d fetches", hits)
	}
}
