package app

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dshills/broadcaster/internal/config"
)

// Logging owns the process logger and its outputs.
//
// The level is held by a gate in front of the writers rather than on the
// logger, so SetLevel reaches every component logger derived from Logger.
type Logging struct {
	Logger zerolog.Logger

	gate   *levelGate
	closer io.Closer
}

// NewLogging builds a logger from cfg. Console output goes to stderr; a
// configured file always receives JSON through a rotating writer.
func NewLogging(cfg config.LogConfig, stderr io.Writer) (*Logging, error) {
	if stderr == nil {
		stderr = os.Stderr
	}

	var console io.Writer = stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	var closer io.Closer
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writers = append(writers, file)
		closer = file
	}

	gate := &levelGate{w: zerolog.MultiLevelWriter(writers...)}
	gate.set(cfg.LogLevel())

	return &Logging{
		Logger: zerolog.New(gate).With().Timestamp().Str("service", "broadcaster").Logger(),
		gate:   gate,
		closer: closer,
	}, nil
}

// SetLevel changes the minimum level of every logger built from Logger.
func (l *Logging) SetLevel(level zerolog.Level) {
	l.gate.set(level)
}

// Level returns the current minimum level.
func (l *Logging) Level() zerolog.Level {
	return l.gate.get()
}

// Close closes the log file, if any.
func (l *Logging) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// WithComponent returns a child logger with the component field set.
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// levelGate drops writes below its level.
type levelGate struct {
	w     zerolog.LevelWriter
	level atomic.Int32
}

func (g *levelGate) set(level zerolog.Level) { g.level.Store(int32(level)) }

func (g *levelGate) get() zerolog.Level { return zerolog.Level(g.level.Load()) }

// Write passes through entries logged without a level.
func (g *levelGate) Write(p []byte) (int, error) {
	return g.w.Write(p)
}

// WriteLevel implements zerolog.LevelWriter.
func (g *levelGate) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < g.get() {
		return len(p), nil
	}
	return g.w.WriteLevel(level, p)
}
