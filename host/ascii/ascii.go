// Package ascii draws grayscale frames on a terminal.
package ascii

import (
	"bufio"
	"image"
	"io"
	"strconv"

	"golang.org/x/image/draw"
)

// Ramp runs from the darkest to the brightest glyph.
const Ramp = `$@B%8&WM#*oahkbdpqwmZO0QLCJUYXzcvunxrjft/\|()1{}[]?-_+~<>i!lI;:,"^` + "`'. "

var glyphs [256]byte

// Only full white maps to the last glyph, a space.
func init() {
	for v := range glyphs {
		glyphs[v] = Ramp[v*(len(Ramp)-1)/255]
	}
}

// Glyph returns the character for a pixel value.
func Glyph(v uint8) byte { return glyphs[v] }

// Rows is the row count that keeps the aspect ratio of an image shown
// cols characters wide. Terminal cells are about twice as tall as wide.
func Rows(bounds image.Rectangle, cols int) int {
	if bounds.Dx() == 0 {
		return 0
	}
	rows := cols * bounds.Dy() / bounds.Dx() / 2
	if rows < 1 {
		rows = 1
	}
	return rows
}

// Renderer reuses its scaling buffer between frames.
type Renderer struct {
	Cols, Rows int
	// Scaler resamples the frame to the character grid.
	Scaler draw.Scaler

	cells *image.Gray
	line  []byte
}

// NewRenderer returns a renderer for a cols by rows character grid.
func NewRenderer(cols, rows int) *Renderer {
	return &Renderer{Cols: cols, Rows: rows, Scaler: draw.ApproxBiLinear}
}

// Render homes the cursor and draws img over the previous frame.
func (r *Renderer) Render(w io.Writer, img image.Image) error {
	grid := image.Rect(0, 0, r.Cols, r.Rows)
	if r.cells == nil || r.cells.Rect != grid {
		r.cells = image.NewGray(grid)
		r.line = make([]byte, r.Cols)
	}
	r.Scaler.Scale(r.cells, grid, img, img.Bounds(), draw.Src, nil)

	bw := bufio.NewWriter(w)
	bw.WriteString("\033[H")
	for y := 0; y < r.Rows; y++ {
		row := r.cells.Pix[y*r.cells.Stride : y*r.cells.Stride+r.Cols]
		for x, v := range row {
			r.line[x] = glyphs[v]
		}
		bw.WriteString("\033[" + strconv.Itoa(y+1) + "H")
		bw.Write(r.line)
		bw.WriteString("\033[K")
	}
	bw.WriteString("\033[J")
	return bw.Flush()
}

// Clear erases the screen.
func Clear(w io.Writer) error {
	_, err := io.WriteString(w, "\033[2J")
	return err
}
