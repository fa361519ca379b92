// Package extract maps loosely-structured webhook payloads onto the
// canonical call fields. Upstream automation tools have shipped the same
// call under several shapes over time (flat keys, nested message envelopes,
// spreadsheet-style display headers), so each field carries an ordered list
// of candidate paths and the first defined non-null value wins.
package extract

import "strings"

// Candidate paths per canonical field, in priority order. A path is either a
// literal key or a dot-separated descent through nested objects.
var (
	IDPaths         = []string{"id", "ID"}
	CallerNamePaths = []string{"caller_name", "message.analysis.structuredData.name", "message.analysis.structuredData._name", "name", "Caller Name"}
	PhonePaths      = []string{"phone", "Phone"}
	CallStartPaths  = []string{"call_start", "message.startedAt", "startedAt", "Call Start"}
	CallEndPaths    = []string{"call_end", "message.endedAt", "endedAt", "Call End"}
	DurationPaths   = []string{"duration"}
	TranscriptPaths = []string{"transcript"}
	SummaryPaths    = []string{"summary", "message.summary", "Summary"}
	SuccessPaths    = []string{"success_flag", "message.analysis.successEvaluation", "successEvaluation", "Success"}
	CostPaths       = []string{"cost", "message.cost", "Cost"}
)

// Lookup returns the first defined, non-null value among the candidate
// paths. The literal key is tried before dotted descent so display-style
// headers ("Call Start") and flat keys containing dots both resolve.
func Lookup(doc map[string]any, paths ...string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	for _, path := range paths {
		if v, ok := doc[path]; ok && v != nil {
			return v, true
		}
		if !strings.Contains(path, ".") {
			continue
		}
		if v, ok := descend(doc, strings.Split(path, ".")); ok {
			return v, true
		}
	}
	return nil, false
}

func descend(doc map[string]any, parts []string) (any, bool) {
	cur := any(doc)
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String coerces a looked-up value to a trimmed string. Non-string scalars
// are not stringified; the normalizer decides per field how strict to be.
func String(doc map[string]any, paths ...string) (string, bool) {
	v, ok := Lookup(doc, paths...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}
