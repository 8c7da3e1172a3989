package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/shlex"

	"picocam/host/ascii"
	"picocam/host/mcu"
)

// runShell reads commands from in until EOF or quit.
func runShell(conn *mcu.MCU, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" || args[0] == "q" {
			return nil
		}
		if err := runCommand(conn, out, args); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help                    - Show this help message")
	fmt.Fprintln(out, "  dict                    - Print dictionary summary")
	fmt.Fprintln(out, "  raw                     - Print raw dictionary data")
	fmt.Fprintln(out, "  uptime                  - Get MCU uptime")
	fmt.Fprintln(out, "  config                  - Get MCU state")
	fmt.Fprintln(out, "  configure W H [BITS]    - Configure the sensor")
	fmt.Fprintln(out, "  status                  - Get camera status")
	fmt.Fprintln(out, "  capture [FILE]          - Capture one frame, show or save it")
	fmt.Fprintln(out, "  exposure LINES          - Set coarse integration")
	fmt.Fprintln(out, "  peek REG [wide]         - Read a sensor register")
	fmt.Fprintln(out, "  poke REG VALUE [wide]   - Write a sensor register")
	fmt.Fprintln(out, "  deinit                  - Release the sensor")
	fmt.Fprintln(out, "  estop                   - Emergency stop")
	fmt.Fprintln(out, "  quit/exit/q             - Exit the program")
	fmt.Fprintln(out)
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

func wideArg(args []string, i int) bool {
	return len(args) > i && args[i] == "wide"
}

func printStatus(out io.Writer, st mcu.Status) {
	if st.Configured {
		fmt.Fprintf(out, "configured %dx%d\n", st.Width, st.Height)
	} else {
		fmt.Fprintln(out, "not configured")
	}
}

func runCommand(conn *mcu.MCU, out io.Writer, args []string) error {
	need := func(n int) error {
		if len(args) < n+1 {
			return fmt.Errorf("%s needs %d arguments", args[0], n)
		}
		return nil
	}

	switch args[0] {
	case "help", "?":
		printHelp(out)

	case "dict":
		conn.PrintDictionary(out)

	case "raw":
		raw := conn.GetDictionaryRaw()
		fmt.Fprintf(out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)

	case "uptime":
		ticks, err := conn.Uptime()
		if err != nil {
			return err
		}
		freq := 1000000.0
		if v, ok := conn.Constant("CLOCK_FREQ"); ok {
			if f, ok := v.(float64); ok && f > 0 {
				freq = f
			}
		}
		fmt.Fprintf(out, "%d ticks (%v)\n", ticks, time.Duration(float64(ticks)/freq*float64(time.Second)).Round(time.Millisecond))

	case "config":
		down, err := conn.Shutdown()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "shutdown=%v\n", down)

	case "configure":
		if err := need(2); err != nil {
			return err
		}
		var v [3]uint64 // bits stay 0 (board width) when omitted
		for i := 0; i < len(v) && i+1 < len(args); i++ {
			n, err := parseUint(args[i+1], 16)
			if err != nil {
				return err
			}
			v[i] = n
		}
		st, err := conn.ConfigureCamera(int(v[0]), int(v[1]), int(v[2]))
		if err != nil {
			return err
		}
		printStatus(out, st)

	case "status":
		st, err := conn.CameraStatus()
		if err != nil {
			return err
		}
		printStatus(out, st)

	case "capture":
		f, err := conn.CaptureFrame(*timeout)
		if err != nil {
			return err
		}
		if len(args) > 1 {
			if err := saveImage(args[1], f.Image()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", args[1])
			return nil
		}
		img := f.Image()
		r := ascii.NewRenderer(*cols, ascii.Rows(img.Bounds(), *cols))
		ascii.Clear(out)
		return r.Render(out, img)

	case "exposure":
		if err := need(1); err != nil {
			return err
		}
		lines, err := parseUint(args[1], 32)
		if err != nil {
			return err
		}
		_, err = conn.SetIntegration(uint32(lines))
		return err

	case "peek":
		if err := need(1); err != nil {
			return err
		}
		reg, err := parseUint(args[1], 16)
		if err != nil {
			return err
		}
		v, err := conn.ReadRegister(uint16(reg), wideArg(args, 2))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "0x%04x = 0x%02x\n", reg, v)

	case "poke":
		if err := need(2); err != nil {
			return err
		}
		reg, err := parseUint(args[1], 16)
		if err != nil {
			return err
		}
		v, err := parseUint(args[2], 16)
		if err != nil {
			return err
		}
		return conn.WriteRegister(uint16(reg), uint16(v), wideArg(args, 3))

	case "deinit":
		return conn.DeinitCamera()

	case "estop":
		return conn.EmergencyStop()

	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for available commands)\n", args[0])
	}
	return nil
}
