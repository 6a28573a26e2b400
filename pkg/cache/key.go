package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// PageVariable is the variable name carrying the page number. It is never
// part of a Signature.
const PageVariable = "page"

// Query identifies a paginated listing request independent of the page.
type Query struct {
	// Operation is the remote operation name (e.g., "fetchSourceManga")
	Operation string

	// Variables are the operation input values. A "page" entry is ignored
	// when computing the signature.
	Variables map[string]any
}

// Signature is the canonical identity of a Query with the page number
// excluded. Two queries with the same signature are the same listing at
// different pages.
type Signature string

// Signature generates a deterministic signature string.
// Format: listing:operation:"var1"=json1:"var2"=json2
//
// Example:
//
//	listing:fetchSourceManga:"query"="berserk":"source"="2499283573021220255":"type"="SEARCH"
func (q Query) Signature() Signature {
	parts := []string{"listing"}

	if op := strings.TrimSpace(q.Operation); op != "" {
		parts = append(parts, op)
	}

	// Variables sorted for determinism; nested maps are sorted by encoding/json
	keys := make([]string, 0, len(q.Variables))
	for key := range q.Variables {
		if key == PageVariable {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", encodeValue(key), encodeValue(q.Variables[key])))
	}

	return Signature(strings.Join(parts, ":"))
}

// WithPage returns a copy of the variables with the page number set.
func (q Query) WithPage(page int) map[string]any {
	vars := make(map[string]any, len(q.Variables)+1)
	for k, v := range q.Variables {
		vars[k] = v
	}
	vars[PageVariable] = page
	return vars
}

// String returns the signature as a plain string.
func (s Signature) String() string {
	return string(s)
}

// Hash returns a 64-bit digest of the signature, used for compact storage keys.
func (s Signature) Hash() uint64 {
	return xxhash.Sum64String(string(s))
}

// StoreKey returns the Redis key holding the snapshot for this signature.
func (s Signature) StoreKey() string {
	return "listing:pages:" + strconv.FormatUint(s.Hash(), 16)
}

func encodeValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Unencodable values (channels, funcs) still need a stable form
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
