// Package normalize converts extracted webhook fields into storage-ready
// call records.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/extract"
)

// Field length bounds applied after defaulting.
const (
	MaxCallerNameLen = 255
	MaxPhoneLen      = 50
	MaxTextLen       = 10000
)

// DefaultCallerName fills in when no caller name survives extraction.
const DefaultCallerName = "Unknown Caller"

// CostPrecision is the decimal-place clamp applied to cost values.
const CostPrecision = 4

// NormalizedCall is the canonical call record persisted by the store.
type NormalizedCall struct {
	ID          string          `json:"id"`
	CallerName  string          `json:"caller_name"`
	Phone       string          `json:"phone"`
	CallStart   time.Time       `json:"call_start"`
	CallEnd     time.Time       `json:"call_end"`
	Duration    int             `json:"duration"`
	Transcript  string          `json:"transcript"`
	Summary     string          `json:"summary"`
	SuccessFlag *bool           `json:"success_flag"`
	Cost        decimal.Decimal `json:"cost"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// ValidationError marks a record that cannot be stored. A bad timestamp
// corrupts every derived duration and metric, so it fails the record
// instead of defaulting.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var durationPattern = regexp.MustCompile(`^(\d+)m\s*(\d+)s$`)

// Normalize builds a NormalizedCall from one untyped payload object.
// Timestamp failures abort the record; every other coercion degrades to a
// safe default and proceeds.
func Normalize(doc map[string]any, now time.Time) (*NormalizedCall, error) {
	rec := &NormalizedCall{
		ID:         resolveID(doc, now),
		CallerName: truncate(stringOr(doc, DefaultCallerName, extract.CallerNamePaths...), MaxCallerNameLen),
		Phone:      truncate(stringOr(doc, "", extract.PhonePaths...), MaxPhoneLen),
		Transcript: truncate(stringOr(doc, "", extract.TranscriptPaths...), MaxTextLen),
		Summary:    truncate(stringOr(doc, "", extract.SummaryPaths...), MaxTextLen),
	}

	var err error
	if rec.CallStart, err = resolveTimestamp(doc, "call_start", extract.CallStartPaths, now); err != nil {
		return nil, err
	}
	if rec.CallEnd, err = resolveTimestamp(doc, "call_end", extract.CallEndPaths, now); err != nil {
		return nil, err
	}

	rec.Duration = resolveDuration(doc, rec.CallStart, rec.CallEnd)
	rec.SuccessFlag = resolveSuccessFlag(doc)
	rec.Cost = resolveCost(doc)
	return rec, nil
}

// NewCallID generates an id for payloads that arrive without one.
func NewCallID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("call_%d_%s", now.UnixMilli(), suffix)
}

func resolveID(doc map[string]any, now time.Time) string {
	if v, ok := extract.Lookup(doc, extract.IDPaths...); ok {
		switch id := v.(type) {
		case string:
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	return NewCallID(now)
}

func resolveTimestamp(doc map[string]any, field string, paths []string, now time.Time) (time.Time, error) {
	v, ok := extract.Lookup(doc, paths...)
	if !ok {
		return now, nil
	}
	ts, err := ParseTimestamp(v)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Value: fmt.Sprint(v), Err: err}
	}
	return ts, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp shapes seen from upstream: RFC3339
// strings with or without zone, bare dates, and numeric epochs (seconds, or
// milliseconds when the magnitude says so). Result is always UTC.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp format")
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, fmt.Errorf("non-finite epoch")
		}
		return epochToTime(int64(t)), nil
	case int64:
		return epochToTime(t), nil
	case int:
		return epochToTime(int64(t)), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func epochToTime(v int64) time.Time {
	// Heuristic: epochs past the year 33658 in seconds are milliseconds.
	if v > 1e12 {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// resolveDuration picks, in order: an explicit positive numeric duration,
// an explicit "<minutes>m <seconds>s" string, or the clamped start/end
// difference. Zero and negative numerics count as absent and derive.
func resolveDuration(doc map[string]any, start, end time.Time) int {
	if v, ok := extract.Lookup(doc, extract.DurationPaths...); ok {
		switch d := v.(type) {
		case float64:
			if d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0) {
				return int(d)
			}
		case int:
			if d > 0 {
				return d
			}
		case string:
			if secs, ok := ParseDurationString(d); ok {
				return secs
			}
			if n, err := strconv.Atoi(strings.TrimSpace(d)); err == nil && n > 0 {
				return n
			}
		}
	}
	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / time.Second)
}

// ParseDurationString parses the "2m 30s" display format into seconds.
func ParseDurationString(s string) (int, bool) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	mins, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	secs, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return mins*60 + secs, true
}

// FormatDuration renders seconds in the "2m 30s" display format.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// resolveSuccessFlag keeps the tri-state intact: explicit false must not
// collapse into "unknown", and absence must not collapse into false.
func resolveSuccessFlag(doc map[string]any) *bool {
	v, ok := extract.Lookup(doc, extract.SuccessPaths...)
	if !ok {
		return nil
	}
	switch f := v.(type) {
	case bool:
		return &f
	case string:
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "true", "pass", "success":
			t := true
			return &t
		case "false", "fail", "failure":
			t := false
			return &t
		}
	}
	return nil
}

// resolveCost coerces the cost field to a non-negative decimal clamped to
// four places, rounding half-up. Cost is best effort; anything that does
// not parse becomes zero.
func resolveCost(doc map[string]any) decimal.Decimal {
	v, ok := extract.Lookup(doc, extract.CostPaths...)
	if !ok {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch c := v.(type) {
	case float64:
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(c)
	case int:
		d = decimal.NewFromInt(int64(c))
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(c))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(CostPrecision)
}

func stringOr(doc map[string]any, def string, paths ...string) string {
	if s, ok := extract.String(doc, paths...); ok {
		return s
	}
	return def
}

// truncate clamps to a character count, never slicing mid-rune; a byte
// slice could leave invalid UTF-8 in the store.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
