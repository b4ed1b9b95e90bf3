package logx

import (
	"io"
	"os"

	"github.com/docqa-assistant/server/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// FilePath, when set, also writes JSON logs to a rotating file.
	FilePath string
}

func safe(otps ...LoggerOpts) *LoggerOpts {
	if len(otps) == 0 {
		return DefaultLoggerOpts
	}
	return &otps[0]
}

func Init(otps ...LoggerOpts) {
	opts := safe(otps...)

	var console io.Writer = os.Stderr
	level := zerolog.InfoLevel
	if !opts.Environment.IsProduction() {
		console = zerolog.NewConsoleWriter()
		level = zerolog.DebugLevel
	}

	out := console
	if opts.FilePath != "" {
		out = zerolog.MultiLevelWriter(console, newRotator(opts.FilePath))
	}

	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger().Level(level)
}

func newRotator(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
