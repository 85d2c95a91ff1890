package logging

import (
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/gotcp/relay"
)

// Logger is the application-wide structured logger instance.
var Logger = slog.Default()

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) *slog.Logger {
	Logger = New(os.Stdout, level, format)
	slog.SetDefault(Logger)
	return Logger
}

func New(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Observer writes reactor events to a slog logger. Byte counts are logged at
// debug level only.
type Observer struct {
	log *slog.Logger
}

func NewObserver(l *slog.Logger) *Observer {
	if l == nil {
		l = Logger
	}
	return &Observer{log: l.With("component", "reactor")}
}

func (o *Observer) OnAccept(fd int, addr net.Addr) {
	var peer string
	if addr != nil {
		peer = addr.String()
	}
	o.log.Info("connection accepted", "fd", fd, "peer", peer)
}

func (o *Observer) OnClose(fd int) {
	o.log.Info("connection closed", "fd", fd)
}

func (o *Observer) OnError(fd int, code relay.ErrorCode, err error) {
	o.log.Warn("reactor error", "fd", fd, "code", code.String(), "error", err)
}

func (o *Observer) OnBytes(fd int, dir relay.Direction, n int) {
	o.log.Debug("bytes transferred", "fd", fd, "direction", dir.String(), "bytes", n)
}

var _ relay.Observer = (*Observer)(nil)
