package cache

import (
	"strings"
	"testing"
)

func TestQuery_Signature(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  Signature
	}{
		{
			name:  "operation only",
			query: Query{Operation: "fetchSourceManga"},
			want:  "listing:fetchSourceManga",
		},
		{
			name: "string variables sorted",
			query: Query{
				Operation: "fetchSourceManga",
				Variables: map[string]any{
					"type":   "POPULAR",
					"source": "42",
				},
			},
			want: `listing:fetchSourceManga:"source"="42":"type"="POPULAR"`,
		},
		{
			name: "page excluded",
			query: Query{
				Operation: "fetchSourceManga",
				Variables: map[string]any{
					"source": "42",
					"page":   3,
				},
			},
			want: `listing:fetchSourceManga:"source"="42"`,
		},
		{
			name: "nested values are canonical",
			query: Query{
				Operation: "fetchSourceManga",
				Variables: map[string]any{
					"filters": map[string]any{"z": 1, "a": []string{"x", "y"}},
				},
			},
			want: `listing:fetchSourceManga:"filters"={"a":["x","y"],"z":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Signature(); got != tt.want {
				t.Errorf("Signature() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestQuery_Signature_Determinism ensures same input always produces same signature
func TestQuery_Signature_Determinism(t *testing.T) {
	q := Query{
		Operation: "fetchSourceManga",
		Variables: map[string]any{
			"source":  "42",
			"type":    "SEARCH",
			"query":   "berserk",
			"filters": map[string]any{"b": true, "a": 2},
		},
	}

	first := q.Signature()
	for i := 0; i < 10; i++ {
		if got := q.Signature(); got != first {
			t.Errorf("run %d: Signature() = %v, want %v (not deterministic)", i, got, first)
		}
	}
}

func TestQuery_Signature_KeysWithSeparators(t *testing.T) {
	a := Query{Operation: "op", Variables: map[string]any{"a": 1, "b": 2}}
	b := Query{Operation: "op", Variables: map[string]any{"a=1:b": 2}}

	if a.Signature() == b.Signature() {
		t.Errorf("distinct variable sets share signature %v", a.Signature())
	}
}

func TestQuery_SamePartitionAcrossPages(t *testing.T) {
	base := map[string]any{"source": "42", "type": "LATEST"}
	q1 := Query{Operation: "op", Variables: base}
	q2 := Query{Operation: "op", Variables: q1.WithPage(7)}

	if q1.Signature() != q2.Signature() {
		t.Errorf("signatures differ: %v vs %v", q1.Signature(), q2.Signature())
	}
}

func TestQuery_WithPage(t *testing.T) {
	q := Query{Variables: map[string]any{"source": "42"}}

	vars := q.WithPage(2)
	if vars[PageVariable] != 2 {
		t.Errorf("page = %v, want 2", vars[PageVariable])
	}
	if _, ok := q.Variables[PageVariable]; ok {
		t.Error("WithPage must not modify the query variables")
	}
}

func TestSignature_StoreKey(t *testing.T) {
	a := Query{Operation: "op", Variables: map[string]any{"source": "1"}}.Signature()
	b := Query{Operation: "op", Variables: map[string]any{"source": "2"}}.Signature()

	if !strings.HasPrefix(a.StoreKey(), "listing:pages:") {
		t.Errorf("StoreKey() = %v, want listing:pages: prefix", a.StoreKey())
	}
	if a.StoreKey() == b.StoreKey() {
		t.Error("different signatures produced the same store key")
	}
	if a.StoreKey() != a.StoreKey() {
		t.Error("StoreKey() not deterministic")
	}
}
