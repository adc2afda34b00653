package http

import (
	"sort"
	"strings"
)

// Headers maps lower-cased header names to their raw values. A repeated
// header overwrites the previous value.
type Headers map[string]string

func NewHeaders() Headers {
	return make(Headers, 8)
}

func (h Headers) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Get returns the value by a case-insensitive key.
func (h Headers) Get(key string) (string, bool) {
	value, found := h[strings.ToLower(key)]
	return value, found
}

// Value is the same as Get, except it returns just an empty string if
// the key is missing.
func (h Headers) Value(key string) string {
	value, _ := h.Get(key)
	return value
}

func (h Headers) Has(key string) bool {
	_, found := h.Get(key)
	return found
}

// Keys returns all the stored header names in a lexicographical order.
func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func (h Headers) Clone() Headers {
	clone := make(Headers, len(h))
	for key, value := range h {
		clone[key] = value
	}

	return clone
}

func (h Headers) Clear() {
	for key := range h {
		delete(h, key)
	}
}
