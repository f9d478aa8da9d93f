package models

import (
	"bytes"
	"reflect"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	snap := Snapshot{
		{"date": "2023/04/15", "investor_type": "自然人", "long_trade_volume": "1234"},
		{"date": "2023/04/15", "investor_type": "外資", "long_trade_volume": "5678"},
	}

	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(snap, got) {
		t.Fatalf("round trip mismatch: %v != %v", got, snap)
	}
}

func TestEncodeSnapshotKeepsUnicode(t *testing.T) {
	snap := Snapshot{{"contract_name": "臺股期貨"}}

	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Contains(data, []byte("臺股期貨")) {
		t.Fatalf("non-ASCII characters were escaped: %s", data)
	}
}

func TestEncodeSnapshotNil(t *testing.T) {
	data, err := EncodeSnapshot(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(bytes.TrimSpace(data)) != "[]" {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestRecordHelpers(t *testing.T) {
	rec := Record{"date": "2023/04/15", "call_volume": 100.0}

	if rec.Date() != "2023/04/15" {
		t.Errorf("unexpected date: %s", rec.Date())
	}
	if _, ok := rec.String("call_volume"); ok {
		t.Errorf("expected non-textual value to report false")
	}
	if _, ok := rec.String("missing"); ok {
		t.Errorf("expected missing key to report false")
	}

	clone := rec.Clone()
	clone["date"] = "changed"
	if rec.Date() != "2023/04/15" {
		t.Errorf("clone mutated the original record")
	}
}
