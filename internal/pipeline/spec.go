package pipeline

import (
	"taifexflow/config"
	"taifexflow/internal/pipeline/normalizer"
)

// FreshnessMode selects which record carries a latest artifact's
// representative date.
type FreshnessMode int

const (
	// FirstRecordDate uses the date of the first record. The ratio table
	// always lists the query date first.
	FirstRecordDate FreshnessMode = iota
	// MaxRecordDate uses the most recent date across all records. The
	// institutional table carries one row per investor type and may span
	// dates.
	MaxRecordDate
)

// CSVFallback describes the delimited-download degradation of a pipeline.
type CSVFallback struct {
	URL         string
	CommodityID string
	// Category is the artifact prefix for snapshots produced by the
	// fallback; it deliberately differs from the primary category and has
	// no latest artifact, so a fallback-only day is re-fetched next run.
	Category string
	// RawCategory prefixes the decoded-payload diagnostic artifact.
	RawCategory string
}

// Spec parameterizes one crawl pipeline end to end: both pipelines run the
// same orchestrator over different specs.
type Spec struct {
	Category       string
	TableURL       string
	Columns        []normalizer.ColumnMap
	Freshness      FreshnessMode
	CountFields    []string
	RatioFields    []string
	ContractField  string // raw description field; empty disables the instrument filter
	TargetContract string
	Fallback       *CSVFallback
}

// InstitutionalSpec builds the institutional net-position pipeline spec.
func InstitutionalSpec(cfg *config.Config) Spec {
	src := cfg.Sources.Institutional
	return Spec{
		Category: "institutional",
		TableURL: src.TableURL,
		Columns: []normalizer.ColumnMap{
			{Source: "日期", Canonical: "date"},
			{Source: "身份別", Canonical: "investor_type"},
			{Source: "多方交易口數", Canonical: "long_trade_volume"},
			{Source: "多方交易契約金額(千元)", Canonical: "long_trade_value"},
			{Source: "空方交易口數", Canonical: "short_trade_volume"},
			{Source: "空方交易契約金額(千元)", Canonical: "short_trade_value"},
			{Source: "多空交易口數淨額", Canonical: "net_trade_volume"},
			{Source: "多空交易契約金額淨額(千元)", Canonical: "net_trade_value"},
			{Source: "多方未平倉口數", Canonical: "long_oi_volume"},
			{Source: "多方未平倉契約金額(千元)", Canonical: "long_oi_value"},
			{Source: "空方未平倉口數", Canonical: "short_oi_volume"},
			{Source: "空方未平倉契約金額(千元)", Canonical: "short_oi_value"},
			{Source: "多空未平倉口數淨額", Canonical: "net_oi_volume"},
			{Source: "多空未平倉契約金額淨額(千元)", Canonical: "net_oi_value"},
			{Source: "契約", Canonical: "contract_description"},
		},
		Freshness: MaxRecordDate,
		CountFields: []string{
			"long_trade_volume", "long_trade_value",
			"short_trade_volume", "short_trade_value",
			"net_trade_volume", "net_trade_value",
			"long_oi_volume", "long_oi_value",
			"short_oi_volume", "short_oi_value",
			"net_oi_volume", "net_oi_value",
		},
		ContractField:  "contract_description",
		TargetContract: src.TargetContract,
		Fallback: &CSVFallback{
			URL:         src.CSVURL,
			CommodityID: src.CommodityID,
			Category:    "institutional_csv",
			RawCategory: "institutional_raw",
		},
	}
}

// PCRatioSpec builds the put/call ratio pipeline spec.
func PCRatioSpec(cfg *config.Config) Spec {
	return Spec{
		Category: "pc_ratio",
		TableURL: cfg.Sources.PCRatio.TableURL,
		Columns: []normalizer.ColumnMap{
			{Source: "日期", Canonical: "date"},
			{Source: "買權成交量", Canonical: "call_volume"},
			{Source: "賣權成交量", Canonical: "put_volume"},
			{Source: "買賣權成交量比率%", Canonical: "put_call_volume_ratio_pct"},
			{Source: "買權未平倉量", Canonical: "call_oi"},
			{Source: "賣權未平倉量", Canonical: "put_oi"},
			{Source: "買賣權未平倉量比率%", Canonical: "put_call_oi_ratio_pct"},
		},
		Freshness:   FirstRecordDate,
		CountFields: []string{"call_volume", "put_volume", "call_oi", "put_oi"},
		RatioFields: []string{"put_call_volume_ratio_pct", "put_call_oi_ratio_pct"},
	}
}
