// Package charts renders the dashboard bar charts as PNG images on the
// server, so the summary charts stay available to plain HTTP clients.
package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	chartWidth   = 640
	chartHeight  = 320
	marginTop    = 40
	marginBottom = 36
	marginSide   = 24
)

var (
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	axisGray   = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	textBlack  = color.RGBA{R: 30, G: 30, B: 30, A: 255}

	// Palette matching the dashboard accent colors.
	Palette = []color.RGBA{
		{R: 0x06, G: 0xB6, B: 0xD4, A: 255},
		{R: 0x8B, G: 0x5C, B: 0xF6, A: 255},
		{R: 0xF5, G: 0x9E, B: 0x0B, A: 255},
	}
)

// RenderBars draws a labeled bar chart. Labels and values must be the same
// length; colors cycle through the palette when fewer are given.
func RenderBars(title string, labels []string, values []int) ([]byte, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("labels/values length mismatch: %d vs %d", len(labels), len(values))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no data points")
	}

	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	maxVal := 1
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}

	plotW := chartWidth - 2*marginSide
	plotH := chartHeight - marginTop - marginBottom
	slot := plotW / len(values)
	barW := slot * 2 / 3
	baseline := chartHeight - marginBottom

	drawText(img, marginSide, marginTop/2+4, title, textBlack)
	drawHLine(img, marginSide, chartWidth-marginSide, baseline, axisGray)

	for i, v := range values {
		h := v * plotH / maxVal
		x0 := marginSide + i*slot + (slot-barW)/2
		bar := image.Rect(x0, baseline-h, x0+barW, baseline)
		draw.Draw(img, bar, &image.Uniform{C: Palette[i%len(Palette)]}, image.Point{}, draw.Src)

		countText := fmt.Sprintf("%d", v)
		drawText(img, x0+(barW-textWidth(countText))/2, baseline-h-4, countText, textBlack)
		drawText(img, x0+(barW-textWidth(labels[i]))/2, baseline+16, labels[i], axisGray)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: c},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func textWidth(text string) int {
	return len(text) * basicfont.Face7x13.Advance
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}
