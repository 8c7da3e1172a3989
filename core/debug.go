package core

// DebugWriter writes one line of debug output.
type DebugWriter func(string)

var (
	// debugPrintln is replaced by the target (USB, UART).
	debugPrintln DebugWriter = func(s string) {}

	// Off by default: a frame transfer must not be slowed by logging.
	debugEnabled = false

	debugChan chan string
)

// SetDebugWriter redirects debug output.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts a goroutine draining DebugAsync messages. Call it
// after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go func() {
		for msg := range debugChan {
			if debugEnabled && debugPrintln != nil {
				debugPrintln(msg)
			}
		}
	}()
}

// DebugPrintln writes msg synchronously when debugging is enabled.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues msg without blocking; it is dropped when the queue is
// full or InitAsyncDebug was not called.
func DebugAsync(msg string) {
	if debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}
