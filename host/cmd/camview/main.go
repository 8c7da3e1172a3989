// Command camview shows the camera on a terminal and saves frames.
//
// Without -shell it configures the sensor and streams frames as ASCII art
// until interrupted or -frames is reached. With -shell it reads commands
// from stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"picocam/host/ascii"
	"picocam/host/mcu"
	"picocam/host/serial"
)

var (
	device      = flag.String("device", "", "Serial device path (empty to detect)")
	baud        = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	width       = flag.Int("width", 160, "Frame width")
	height      = flag.Int("height", 120, "Frame height")
	bits        = flag.Int("bits", 0, "Data bus width: 1, 4 or 8 (0: as wired on the board)")
	integration = flag.Uint("integration", 0, "Coarse integration in lines (0 keeps the default)")
	frames      = flag.Int("frames", 0, "Frames to capture (0 runs until interrupted)")
	cols        = flag.Int("cols", 80, "Terminal columns for the preview (0 disables it)")
	out         = flag.String("out", "", "Save the last frame (.png, .bmp or .tiff)")
	timeout     = flag.Duration("timeout", 10*time.Second, "Capture timeout")
	shell       = flag.Bool("shell", false, "Interactive command shell")
	verbose     = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	var progress io.Writer
	if *verbose {
		progress = os.Stderr
	}
	conn := mcu.NewMCU(progress)

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	if err := conn.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	if *verbose {
		fmt.Fprintf(os.Stderr, "Connected to %s\n", cfg.Device)
	}

	if err := conn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}

	if *shell {
		if err := runShell(conn, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := stream(ctx, conn); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func stream(ctx context.Context, conn *mcu.MCU) error {
	if _, err := conn.ConfigureCamera(*width, *height, *bits); err != nil {
		return fmt.Errorf("configure %dx%d/%d: %w", *width, *height, *bits, err)
	}
	defer conn.DeinitCamera()

	if *integration > 0 {
		if _, err := conn.SetIntegration(uint32(*integration)); err != nil {
			return fmt.Errorf("set integration: %w", err)
		}
	}

	var view *ascii.Renderer
	if *cols > 0 {
		rows := ascii.Rows(frameBounds(*width, *height), *cols)
		view = ascii.NewRenderer(*cols, rows)
		ascii.Clear(os.Stdout)
	}

	var last *mcu.Frame
	start := time.Now()
	n := 0
	for *frames == 0 || n < *frames {
		if ctx.Err() != nil {
			break
		}
		f, err := conn.CaptureFrame(*timeout)
		if err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}
		last = f
		n++
		if view != nil {
			if err := view.Render(os.Stdout, f.Image()); err != nil {
				return err
			}
		}
	}
	if *verbose && n > 0 {
		elapsed := time.Since(start)
		fmt.Fprintf(os.Stderr, "%d frames in %v (%.1f fps)\n", n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
	}

	if *out != "" && last != nil {
		if err := saveImage(*out, last.Image()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %s\n", *out)
	}
	return nil
}
