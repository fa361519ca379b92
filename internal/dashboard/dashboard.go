// Package dashboard computes presentation metrics over stored calls. Every
// value here is a pure projection; nothing is persisted.
package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/normalize"
)

// Metrics is the summary block rendered at the top of the dashboard.
type Metrics struct {
	TotalCalls        int    `json:"totalCalls"`
	AvgCallDuration   string `json:"avgCallDuration"`
	TotalBalance      string `json:"totalBalance"`
	AvgCallCost       string `json:"avgCallCost"`
	SuccessRate       string `json:"successRate"`
	TotalReservations int    `json:"totalReservations"`
	LastRefreshed     string `json:"lastRefreshed"`
}

// DurationBucket is one slice of the call-length distribution.
type DurationBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DailyCount is one point on the calls-per-day series.
type DailyCount struct {
	Date  string `json:"date"`
	Calls int    `json:"calls"`
}

// DaySpan is the trailing window of the calls-per-day series.
const DaySpan = 14

var reservationKeywords = []string{"reservation", "booking", "table for"}

// Compute derives the summary metrics. An empty input yields zero-valued
// defaults; there is no division anywhere a zero count can reach.
func Compute(calls []normalize.NormalizedCall, initialBalance float64, now time.Time) Metrics {
	m := Metrics{
		TotalCalls:      len(calls),
		AvgCallDuration: normalize.FormatDuration(0),
		TotalBalance:    "₹" + formatINR(decimal.NewFromFloat(initialBalance)),
		AvgCallCost:     "₹0.00",
		SuccessRate:     "0%",
		LastRefreshed:   now.Format("3:04:05 PM"),
	}
	if len(calls) == 0 {
		return m
	}

	totalCost := decimal.Zero
	totalDuration := 0
	successful := 0
	for _, c := range calls {
		totalCost = totalCost.Add(c.Cost)
		totalDuration += c.Duration
		if c.SuccessFlag != nil && *c.SuccessFlag {
			successful++
		}
		if hasReservation(c) {
			m.TotalReservations++
		}
	}

	count := decimal.NewFromInt(int64(len(calls)))
	balance := decimal.NewFromFloat(initialBalance).Sub(totalCost)

	m.AvgCallDuration = normalize.FormatDuration(totalDuration / len(calls))
	m.TotalBalance = "₹" + formatINR(balance)
	m.AvgCallCost = "₹" + totalCost.Div(count).StringFixed(2)
	m.SuccessRate = fmt.Sprintf("%d%%", int(math.Round(float64(successful)/float64(len(calls))*100)))
	return m
}

func hasReservation(c normalize.NormalizedCall) bool {
	text := strings.ToLower(c.Transcript + " " + c.Summary)
	for _, kw := range reservationKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DurationBuckets splits calls into the short/medium/long histogram used by
// the distribution chart. Boundaries follow whole minutes.
func DurationBuckets(calls []normalize.NormalizedCall) []DurationBucket {
	var short, medium, long int
	for _, c := range calls {
		switch mins := c.Duration / 60; {
		case mins < 1:
			short++
		case mins <= 3:
			medium++
		default:
			long++
		}
	}
	return []DurationBucket{
		{Name: "< 1 min", Value: short},
		{Name: "1-3 min", Value: medium},
		{Name: "> 3 min", Value: long},
	}
}

// CallsPerDay buckets calls by calendar day over the trailing window
// anchored to now, oldest day first.
func CallsPerDay(calls []normalize.NormalizedCall, now time.Time) []DailyCount {
	now = now.UTC()
	out := make([]DailyCount, 0, DaySpan)
	for i := DaySpan - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		count := 0
		for _, c := range calls {
			if sameDay(c.CallStart.UTC(), day) {
				count++
			}
		}
		out = append(out, DailyCount{Date: day.Format("Jan 2"), Calls: count})
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// formatINR renders a rupee amount with Indian digit grouping and two
// decimal places, e.g. 123456.7 -> "1,23,456.70".
func formatINR(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]

	grouped := intPart
	if len(intPart) > 3 {
		head := intPart[:len(intPart)-3]
		tail := intPart[len(intPart)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(append(parts, tail), ",")
	}
	if neg {
		return "-" + grouped + frac
	}
	return grouped + frac
}
