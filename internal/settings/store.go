// Package settings persists named settings documents for the market-data subsystem.
//
// A document is a flat JSON object. Writes are partial: only the given fields are replaced,
// other fields of the stored document are kept.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
)

// Document is a settings document keyed by field name.
type Document map[string]any

// Store reads and writes settings documents.
type Store interface {
	// Read returns the document stored under name, or nil when none exists.
	Read(ctx context.Context, name string) (Document, error)
	// Write merges fields into the document stored under name, creating it if needed.
	Write(ctx context.Context, name string, fields Document) error
	Close() error
}

// Strings returns a string slice field, tolerating the decoded shapes JSON and BSON produce.
func (d Document) Strings(field string) ([]string, error) {
	raw, ok := d[field]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field %s[%d]: expected string, got %T", field, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %s: expected array, got %T", field, raw)
	}
}

// normalize round-trips a document through JSON so driver-specific container
// types (bson arrays, typed slices) become plain []any / map[string]any.
func normalize(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

func merge(dst, fields Document) Document {
	if dst == nil {
		dst = make(Document, len(fields))
	}
	for k, v := range fields {
		dst[k] = v
	}
	return dst
}
