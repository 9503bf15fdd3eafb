// Package manifest holds the package manifest (package.json) shared by every
// builder of one package build.
//
// Builders only ever add to the manifest: DefaultField writes a value only
// when the field is absent or falsy, so defaults contributed by independent
// builders commute and never clobber what the package author wrote.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// Well-known fields written by the builtin builders.
const (
	FieldSource = "source"
	FieldTypes  = "types"
	FieldDeno   = "deno"
)

// Manifest is a mutable key/value record describing a published package.
// Fields keep the order they were loaded or added in. Values read from disk
// and never replaced are written back byte for byte, so nested key order
// and string escapes survive a load and save.
type Manifest struct {
	fields map[string]interface{}
	raw    map[string]json.RawMessage
	order  []string
	mu     sync.RWMutex
}

// New creates an empty manifest.
func New() *Manifest {
	return &Manifest{
		fields: make(map[string]interface{}),
		raw:    make(map[string]json.RawMessage),
	}
}

// FromMap creates a manifest holding a copy of fields, ordered by key.
func FromMap(fields map[string]interface{}) *Manifest {
	m := New()
	for k, v := range fields {
		m.fields[k] = v
		m.order = append(m.order, k)
	}
	sort.Strings(m.order)
	return m
}

// Load reads a manifest from path. A missing file yields an empty manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := m.decode(data); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

// decode reads a top-level JSON object, keeping the key order and the raw
// bytes of every value. A null document is an empty manifest.
func (m *Manifest) decode(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("manifest must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}

		if _, seen := m.fields[key]; !seen {
			m.order = append(m.order, key)
		}
		m.fields[key] = value
		m.raw[key] = raw
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after the manifest object")
	}
	return nil
}

// Save writes the manifest to path as indented JSON with a trailing
// newline. Keys keep their order and values are not HTML-escaped, so
// scripts such as "tsc && node x.js > out" stay readable.
func (m *Manifest) Save(path string) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format manifest: %w", err)
	}
	out.WriteByte('\n')

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if raw, ok := m.raw[key]; ok {
			buf.Write(raw)
			continue
		}
		if err := encodeValue(&buf, m.fields[key]); err != nil {
			return nil, fmt.Errorf("failed to encode manifest field %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// put stores value under key. The caller holds the write lock.
func (m *Manifest) put(key string, value interface{}) {
	if _, ok := m.fields[key]; !ok {
		m.order = append(m.order, key)
	}
	m.fields[key] = value
	delete(m.raw, key)
}

// DefaultField sets key to value only when the current value is absent or
// falsy. It reports whether the manifest changed.
func (m *Manifest) DefaultField(key string, value interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if Truthy(m.fields[key]) {
		return false
	}
	m.put(key, value)
	return true
}

// Set overwrites key unconditionally. Builders use DefaultField; Set is for
// the orchestrator.
func (m *Manifest) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value)
}

// Get returns the raw value stored under key.
func (m *Manifest) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.fields[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (m *Manifest) String(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

// Keys returns the field names in sorted order.
func (m *Manifest) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a shallow copy of the fields.
func (m *Manifest) Map() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]interface{}, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// Truthy mirrors JavaScript truthiness for decoded JSON values.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case json.Number:
		return val != "" && val != "0"
	default:
		return true
	}
}
