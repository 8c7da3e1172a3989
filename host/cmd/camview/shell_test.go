package main

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"picocam/host/mcu"
)

func TestShellOffline(t *testing.T) {
	conn := mcu.NewMCU(nil)
	in := strings.NewReader("help\n\nbogus\nstatus\npeek 0x10000\ncapture \"unterminated\nquit\nstatus\n")
	var out strings.Builder
	if err := runShell(conn, in, &out); err != nil {
		t.Fatalf("runShell failed: %v", err)
	}

	s := out.String()
	for _, want := range []string{
		"Available commands",
		"Unknown command: bogus",
		"Error: " + mcu.ErrNotConnected.Error(),
		`Error: bad number "0x10000"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Output lacks %q:\n%s", want, s)
		}
	}
	// Nothing runs after quit.
	if n := strings.Count(s, mcu.ErrNotConnected.Error()); n != 1 {
		t.Errorf("%d not-connected errors, expected 1", n)
	}
}

func TestSaveImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	dir := t.TempDir()

	for _, name := range []string{"f.png", "f.BMP", "f.tiff"} {
		path := filepath.Join(dir, name)
		if err := saveImage(path, img); err != nil {
			t.Errorf("saveImage(%s) failed: %v", name, err)
			continue
		}
		if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
			t.Errorf("%s not written", name)
		}
	}

	path := filepath.Join(dir, "f.jpg")
	if err := saveImage(path, img); err == nil {
		t.Error("saveImage accepted .jpg")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Failed save left a file behind")
	}
}
