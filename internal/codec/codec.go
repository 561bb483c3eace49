// Package codec serializes Go values to and from storage payloads. Codecs
// are thin adapters over the storage contract: the payload variant is always
// chosen here, never inferred from content downstream.
package codec

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"

	"fileflow/internal/storage"
)

// EncodeJSON marshals v into a UTF-8 text payload.
func EncodeJSON(v any) (storage.Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return storage.Payload{}, err
	}
	return storage.Text(string(b)), nil
}

// DecodeJSON unmarshals a payload produced by EncodeJSON (or any JSON text
// payload) into v.
func DecodeJSON(p storage.Payload, v any) error {
	return json.Unmarshal(p.Data, v)
}

// EncodeTable renders records as CSV with every field quoted, as a UTF-8
// text payload. Quoting everything keeps empty strings distinguishable from
// absent fields when other tools read the output.
func EncodeTable(records [][]string) (storage.Payload, error) {
	var buf bytes.Buffer
	for _, rec := range records {
		for i, field := range rec {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
			buf.WriteByte('"')
		}
		buf.WriteByte('\n')
	}
	return storage.Text(buf.String()), nil
}

// DecodeTable parses a CSV text payload into records.
func DecodeTable(p storage.Payload) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(p.Data))
	return r.ReadAll()
}
