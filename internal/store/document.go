package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// documentBackend stores one JSON object. read returns nil, nil when nothing is stored.
type documentBackend interface {
	read(ctx context.Context) ([]byte, error)
	write(ctx context.Context, doc []byte) error
	remove(ctx context.Context) error
	close() error
}

// documentStore implements Store over a single JSON document. Set is a
// read-merge-write of the whole document, so all keys land in one write.
type documentStore struct {
	name    string
	mu      sync.Mutex
	backend documentBackend
}

func (s *documentStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s store: read: %w", s.name, err)
	}
	return pickKeys(doc, keys), nil
}

func (s *documentStore) Set(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	raw, err := encodeValues(values)
	if err != nil {
		return fmt.Errorf("%s store: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.backend.read(ctx)
	if err != nil {
		return fmt.Errorf("%s store: read: %w", s.name, err)
	}
	next, err := mergeDocument(current, raw)
	if err != nil {
		return fmt.Errorf("%s store: %w", s.name, err)
	}
	if current != nil && jsonEqual(current, next) {
		return nil
	}
	if err = s.backend.write(ctx, next); err != nil {
		return fmt.Errorf("%s store: write: %w", s.name, err)
	}
	return nil
}

func (s *documentStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.remove(ctx); err != nil {
		return fmt.Errorf("%s store: clear: %w", s.name, err)
	}
	return nil
}

func (s *documentStore) Close() error {
	return s.backend.close()
}

// encodeValues marshals each value on its own so a bad value fails the whole Set.
func encodeValues(values map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("empty key")
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// pickKeys returns the requested top-level members of doc.
func pickKeys(doc []byte, keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	if len(doc) == 0 {
		return out
	}
	for _, key := range keys {
		if r := gjson.GetBytes(doc, escapePath(key)); r.Exists() {
			out[key] = json.RawMessage(r.Raw)
		}
	}
	return out
}

// mergeDocument sets each value as a top-level member of doc.
func mergeDocument(doc []byte, values map[string]json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(doc)) == 0 || !gjson.ValidBytes(doc) {
		doc = []byte("{}")
	}
	var err error
	for key, value := range values {
		doc, err = sjson.SetRawBytes(doc, escapePath(key), value)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}
	return doc, nil
}

// escapePath makes key a literal gjson/sjson path.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// jsonEqual compares two documents semantically, ignoring formatting and key order.
func jsonEqual(a, b []byte) bool {
	var objA, objB any
	if err := json.Unmarshal(a, &objA); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &objB); err != nil {
		return false
	}
	return reflect.DeepEqual(objA, objB)
}
