package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/extract"
)

func TestLookup(t *testing.T) {
	tests := map[string]struct {
		doc      map[string]any
		paths    []string
		expected any
		found    bool
	}{
		"FirstCandidateWins": {
			doc:      map[string]any{"caller_name": "A", "name": "B"},
			paths:    extract.CallerNamePaths,
			expected: "A",
			found:    true,
		},
		"FallsThroughToLowerPriority": {
			doc:      map[string]any{"name": "B"},
			paths:    extract.CallerNamePaths,
			expected: "B",
			found:    true,
		},
		"NestedPathResolves": {
			doc: map[string]any{
				"message": map[string]any{
					"analysis": map[string]any{
						"structuredData": map[string]any{"name": "Nested"},
					},
				},
			},
			paths:    extract.CallerNamePaths,
			expected: "Nested",
			found:    true,
		},
		"DisplayHeaderKey": {
			doc:      map[string]any{"Call Start": "2026-01-01T00:00:00Z"},
			paths:    extract.CallStartPaths,
			expected: "2026-01-01T00:00:00Z",
			found:    true,
		},
		"NullValueSkipped": {
			doc:      map[string]any{"summary": nil, "message": map[string]any{"summary": "from nested"}},
			paths:    extract.SummaryPaths,
			expected: "from nested",
			found:    true,
		},
		"ExplicitFalsePreserved": {
			doc:      map[string]any{"success_flag": false},
			paths:    extract.SuccessPaths,
			expected: false,
			found:    true,
		},
		"AbsentField": {
			doc:   map[string]any{"unrelated": 1},
			paths: extract.CostPaths,
			found: false,
		},
		"PartialNestedPath": {
			doc:   map[string]any{"message": map[string]any{"startedAt": nil}},
			paths: extract.CallStartPaths,
			found: false,
		},
		"NonMapIntermediate": {
			doc:   map[string]any{"message": "not an object"},
			paths: extract.CallEndPaths,
			found: false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := extract.Lookup(tc.doc, tc.paths...)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, tc.expected, got)
			}
		})
	}
}

func TestLookupNilDoc(t *testing.T) {
	_, ok := extract.Lookup(nil, "id")
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	doc := map[string]any{"transcript": "  hello  ", "cost": 12.5}

	s, ok := extract.String(doc, extract.TranscriptPaths...)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	// Non-string scalars are left for the normalizer.
	_, ok = extract.String(doc, extract.CostPaths...)
	assert.False(t, ok)

	_, ok = extract.String(map[string]any{"transcript": "   "}, extract.TranscriptPaths...)
	assert.False(t, ok)
}
