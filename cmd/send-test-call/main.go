// Command send-test-call posts sample call payloads at a running service,
// covering the flat, nested, and batch shapes the webhook accepts.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/normalize"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "service base URL")
	shape := flag.String("shape", "flat", "payload shape: flat, nested, or batch")
	flag.Parse()

	payload, err := buildPayload(*shape, time.Now().UTC())
	if err != nil {
		log.Fatalf("build payload: %v", err)
	}

	body, _ := json.MarshalIndent(payload, "", "  ")
	log.Printf("sending %s payload:\n%s", *shape, body)

	resp, err := http.Post(*baseURL+"/api/webhook", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	log.Printf("status %d: %s", resp.StatusCode, out)
}

func buildPayload(shape string, now time.Time) (any, error) {
	switch shape {
	case "flat":
		return flatCall(now), nil
	case "nested":
		return nestedCall(now), nil
	case "batch":
		return []any{flatCall(now), nestedCall(now)}, nil
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
}

func flatCall(now time.Time) map[string]any {
	return map[string]any{
		"id":           normalize.NewCallID(now),
		"caller_name":  "Test User",
		"phone":        "+911234567890",
		"call_start":   now.Format(time.RFC3339),
		"call_end":     now.Add(5 * time.Minute).Format(time.RFC3339),
		"duration":     "5m 0s",
		"transcript":   "This is a test call",
		"summary":      "Customer booked a table for four, reservation confirmed.",
		"success_flag": true,
		"cost":         2.5,
	}
}

func nestedCall(now time.Time) map[string]any {
	return map[string]any{
		"message": map[string]any{
			"startedAt": now.Format(time.RFC3339),
			"endedAt":   now.Add(90 * time.Second).Format(time.RFC3339),
			"summary":   "Caller asked about opening hours.",
			"cost":      "1.2345",
			"analysis": map[string]any{
				"successEvaluation": "false",
				"structuredData":    map[string]any{"name": "Nested Caller"},
			},
		},
	}
}
