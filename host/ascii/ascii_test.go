package ascii

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"golang.org/x/image/draw"
)

func TestGlyphs(t *testing.T) {
	if Glyph(0) != '$' {
		t.Errorf("Glyph(0) = %q", Glyph(0))
	}
	if Glyph(255) != ' ' {
		t.Errorf("Glyph(255) = %q", Glyph(255))
	}
	for _, tc := range []struct {
		v    uint8
		want byte
	}{
		{3, '$'}, {4, '@'}, {11, 'B'}, {12, '%'}, {22, '&'}, {33, '#'},
		{44, 'a'}, {48, 'h'}, {100, 'U'}, {200, '~'}, {254, '.'},
	} {
		if got := Glyph(tc.v); got != tc.want {
			t.Errorf("Glyph(%d) = %q, expected %q", tc.v, got, tc.want)
		}
	}

	// Brighter pixels never map to an earlier (darker) glyph.
	prev := 0
	for v := 0; v < 256; v++ {
		i := strings.IndexByte(Ramp, Glyph(uint8(v)))
		if i < prev {
			t.Fatalf("Glyph(%d) = %q goes back in the ramp", v, Glyph(uint8(v)))
		}
		prev = i
	}
}

func TestRows(t *testing.T) {
	testCases := []struct {
		w, h, cols, rows int
	}{
		{160, 120, 160, 60},
		{320, 320, 80, 40},
		{320, 240, 64, 24},
		{320, 10, 8, 1},
		{0, 0, 80, 0},
	}
	for _, tc := range testCases {
		if got := Rows(image.Rect(0, 0, tc.w, tc.h), tc.cols); got != tc.rows {
			t.Errorf("Rows(%dx%d, %d) = %d, expected %d", tc.w, tc.h, tc.cols, got, tc.rows)
		}
	}
}

func TestRender(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			if x >= 4 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	r := NewRenderer(4, 2)
	r.Scaler = draw.NearestNeighbor
	var buf bytes.Buffer
	if err := r.Render(&buf, img); err != nil {
		t.Fatal(err)
	}

	want := "\033[H" +
		"\033[1H$$  \033[K" +
		"\033[2H$$  \033[K" +
		"\033[J"
	if got := buf.String(); got != want {
		t.Errorf("Render() = %q\nexpected %q", got, want)
	}

	// A second frame reuses the grid.
	buf.Reset()
	if err := r.Render(&buf, img); err != nil {
		t.Fatal(err)
	}
	if buf.String() != want {
		t.Errorf("Second Render() = %q", buf.String())
	}
}
