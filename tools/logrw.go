package tools

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// LogReadWriter is a wrapper around an io.ReadWriter that logs all reads and writes to a slog.Logger.
// Passwords sent with PASS are masked.
type LogReadWriter struct {
	ReadWriter io.ReadWriter
	logger     *slog.Logger
}

func (rw *LogReadWriter) Read(b []byte) (int, error) {
	n, err := rw.ReadWriter.Read(b)
	if rw.logger != nil && n > 0 { // Log only if n > 0 to avoid logging empty reads
		rw.logger.Debug("Request", "body", IsPrintable(RedactPassword(string(b[:n]))))
	}
	return n, err
}

func (rw *LogReadWriter) Write(b []byte) (int, error) {
	if rw.logger != nil {
		rw.logger.Debug("Respond", "body", IsPrintable(b))
	}
	return rw.ReadWriter.Write(b)
}

// NewLogReadWriter creates a new LogReadWriter.
func NewLogReadWriter(rw io.ReadWriter, logger *slog.Logger) *LogReadWriter {
	return &LogReadWriter{ReadWriter: rw, logger: logger}
}

// BufLogReadWriter reads lines through a bufio.Reader and writes straight to the connection,
// both sides logged.
type BufLogReadWriter struct {
	io.Writer
	*bufio.Reader
}

// NewBufLogReadWriter creates a new BufLogReadWriter.
// the reason to divide it in 2 structs is to avoid the need to implement all the methods of bufio.ReadWriter
func NewBufLogReadWriter(rw io.ReadWriter, logger *slog.Logger) *BufLogReadWriter {
	rw = &LogReadWriter{ReadWriter: rw, logger: logger}

	return &BufLogReadWriter{
		Reader: bufio.NewReader(rw),
		Writer: rw,
	}
}

// RedactPassword replaces the argument of every PASS line in s
func RedactPassword(s string) string {
	if !strings.Contains(strings.ToUpper(s), "PASS") {
		return s
	}
	lines := strings.SplitAfter(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if len(trimmed) < 4 || !strings.EqualFold(trimmed[:4], "PASS") {
			continue
		}
		if len(trimmed) > 4 && trimmed[4] != ' ' && trimmed[4] != '\t' {
			continue
		}
		eol := line[len(strings.TrimRight(line, "\r\n")):]
		lines[i] = "PASS ****" + eol
	}
	return strings.Join(lines, "")
}
