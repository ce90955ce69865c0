package metadata

import (
	"fmt"
	"sort"
)

// DisplayKeys are the tags shown by the inspect command, in order.
var DisplayKeys = []string{
	"FileName",
	"FileType",
	"FileSize",
	"ImageWidth",
	"ImageHeight",
	"Orientation",
	"Make",
	"Model",
	"DateTimeOriginal",
	"Software",
}

// Inspector reads metadata tags from an image file.
type Inspector interface {
	Inspect(path string) (Metadata, error)
	Close() error
}

// Metadata holds the raw tags of one file.
type Metadata struct {
	Path   string
	Fields map[string]interface{}
}

// Field is a single tag/value pair.
type Field struct {
	Key   string
	Value string
}

// Get returns a tag as a string and whether it was present.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m.Fields[key]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Select returns the present tags among keys, in the order given.
func (m Metadata) Select(keys []string) []Field {
	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		if v, ok := m.Get(key); ok {
			fields = append(fields, Field{Key: key, Value: v})
		}
	}
	return fields
}

// All returns every tag sorted by key.
func (m Metadata) All() []Field {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return m.Select(keys)
}
