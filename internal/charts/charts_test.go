package charts

import (
	"bytes"
	"image/png"
	"testing"
)

func TestRenderBars(t *testing.T) {
	data, err := RenderBars("Call Duration", []string{"< 1 min", "1-3 min", "> 3 min"}, []int{4, 7, 2})
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not decodable PNG: %v", err)
	}
	if img.Bounds().Dx() != chartWidth || img.Bounds().Dy() != chartHeight {
		t.Fatalf("unexpected dimensions %v", img.Bounds())
	}
}

func TestRenderBarsAllZero(t *testing.T) {
	if _, err := RenderBars("Empty", []string{"a", "b"}, []int{0, 0}); err != nil {
		t.Fatalf("zero values must render, got %v", err)
	}
}

func TestRenderBarsMismatch(t *testing.T) {
	if _, err := RenderBars("bad", []string{"a"}, []int{1, 2}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestRenderBarsEmpty(t *testing.T) {
	if _, err := RenderBars("empty", nil, nil); err == nil {
		t.Fatal("expected error for no data")
	}
}
