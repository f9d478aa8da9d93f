package models

import (
	"bytes"
	"encoding/json"
)

// EncodeSnapshot serializes a snapshot as an indented JSON array. HTML
// escaping is disabled so the exchange's Chinese field values stay readable
// in the artifact files.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	if snap == nil {
		snap = Snapshot{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses a persisted artifact back into a snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}
