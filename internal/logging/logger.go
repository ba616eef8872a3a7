package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"mkexporter/internal/config"
)

// LevelPanic is the most severe level accepted by sink configs.
const LevelPanic = slog.LevelError + 4

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiGray    = "\x1b[90m"
)

// New builds the process logger from console/file sink config.
// Params: cfg validated logging sections.
// Returns: logger, close function for file sinks, and open error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var (
		handlers []slog.Handler
		closers  []io.Closer
	)

	if cfg.Console.Enabled {
		var out io.Writer = os.Stdout
		if cfg.Console.Format != "json" && isTerminal(os.Stdout) {
			out = &colorLineWriter{dst: os.Stdout}
		}
		handlers = append(handlers, newHandler(out, cfg.Console))
	}

	if cfg.File.Enabled {
		file, err := openLogFile(cfg.File.Path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, file)
		handlers = append(handlers, newHandler(file, cfg.File))
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(io.Discard, nil))
	}

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			for _, closer := range closers {
				_ = closer.Close()
			}
		})
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn, nil
	}
	return slog.New(fanoutHandler(handlers)), closeFn, nil
}

// ParseLevel maps config level names to slog levels.
// Params: level name (debug, info, warn, error, panic).
// Returns: slog level; info for unknown names.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "panic":
		return LevelPanic
	default:
		return slog.LevelInfo
	}
}

// newHandler creates one sink handler.
// Params: out destination writer; sink level/format options.
// Returns: text or JSON slog handler.
func newHandler(out io.Writer, sink config.LogSinkConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(sink.Level),
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key != slog.LevelKey {
				return attr
			}
			if level, ok := attr.Value.Any().(slog.Level); ok && level >= LevelPanic {
				attr.Value = slog.StringValue("PANIC")
			}
			return attr
		},
	}
	if sink.Format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// openLogFile opens a log file for append, creating parent directories.
// Params: path file sink path.
// Returns: open file or error.
func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %q: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return file, nil
}

// isTerminal reports whether file is an interactive terminal.
// Params: file descriptor holder.
// Returns: true for tty or cygwin terminal.
func isTerminal(file *os.File) bool {
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// fanoutHandler duplicates records across sink handlers.
type fanoutHandler []slog.Handler

// Enabled reports whether any sink accepts level.
func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards record to every sink that accepts its level.
func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns fanout over sinks with attrs attached.
func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(h))
	for idx, handler := range h {
		next[idx] = handler.WithAttrs(attrs)
	}
	return next
}

// WithGroup returns fanout over sinks with group opened.
func (h fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(h))
	for idx, handler := range h {
		next[idx] = handler.WithGroup(name)
	}
	return next
}

// colorLineWriter colorizes slog text lines for terminals.
// Params: dst receives colored output.
// Returns: io.Writer implementation.
type colorLineWriter struct {
	mu  sync.Mutex
	dst io.Writer
}

// Write colors one or more text handler lines.
// Params: p raw log bytes.
// Returns: len(p) on success or destination error.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out bytes.Buffer
	rest := p
	for len(rest) > 0 {
		line := rest
		newline := false
		if idx := bytes.IndexByte(rest, '\n'); idx >= 0 {
			line = rest[:idx]
			rest = rest[idx+1:]
			newline = true
		} else {
			rest = nil
		}

		colorizeLine(&out, string(line))
		if newline {
			out.WriteByte('\n')
		}
	}

	if _, err := w.dst.Write(out.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// colorizeLine writes line with level base color and highlighted tokens.
// Params: out destination buffer; line one log line without newline.
// Returns: none.
func colorizeLine(out *bytes.Buffer, line string) {
	base := levelColor(line)
	if base == "" {
		out.WriteString(line)
		return
	}

	out.WriteString(base)
	for idx := 0; idx < len(line); {
		switch ch := line[idx]; {
		case ch == '"':
			end := quotedEnd(line, idx)
			writeToken(out, ansiGreen, line[idx:end], base)
			idx = end
		case ch == ' ' || ch == '=':
			out.WriteByte(ch)
			idx++
		default:
			end := idx
			for end < len(line) && line[end] != ' ' && line[end] != '=' && line[end] != '"' {
				end++
			}
			token := line[idx:end]
			switch {
			case isIPToken(token):
				writeToken(out, ansiCyan, token, base)
			case isNumberToken(token):
				writeToken(out, ansiYellow, token, base)
			default:
				out.WriteString(token)
			}
			idx = end
		}
	}
	out.WriteString(ansiReset)
}

// writeToken writes token in color and restores base color.
func writeToken(out *bytes.Buffer, color, token, base string) {
	out.WriteString(color)
	out.WriteString(token)
	out.WriteString(ansiReset)
	out.WriteString(base)
}

// quotedEnd finds the end offset of a quoted token honoring escapes.
// Params: line text; start offset of opening quote.
// Returns: offset after closing quote or len(line).
func quotedEnd(line string, start int) int {
	for idx := start + 1; idx < len(line); idx++ {
		switch line[idx] {
		case '\\':
			idx++
		case '"':
			return idx + 1
		}
	}
	return len(line)
}

// levelColor picks base color from the level attribute.
// Params: line text handler output.
// Returns: ANSI color or empty when no known level is present.
func levelColor(line string) string {
	idx := strings.Index(line, "level=")
	if idx < 0 || (idx > 0 && line[idx-1] != ' ') {
		return ""
	}
	value := line[idx+len("level="):]
	if end := strings.IndexByte(value, ' '); end >= 0 {
		value = value[:end]
	}

	switch {
	case strings.HasPrefix(value, "DEBUG"):
		return ansiGray
	case strings.HasPrefix(value, "INFO"):
		return ansiBlue
	case strings.HasPrefix(value, "WARN"):
		return ansiMagenta
	case strings.HasPrefix(value, "ERROR"), strings.HasPrefix(value, "PANIC"):
		return ansiRed
	default:
		return ""
	}
}

// isIPToken reports whether token is an IP or IP:port.
func isIPToken(token string) bool {
	if net.ParseIP(token) != nil {
		return true
	}
	host, _, err := net.SplitHostPort(token)
	return err == nil && net.ParseIP(host) != nil
}

// isNumberToken reports whether token parses as a float.
func isNumberToken(token string) bool {
	_, err := strconv.ParseFloat(token, 64)
	return err == nil
}
