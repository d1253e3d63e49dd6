package log

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

type (
	Level  = zapcore.Level
	Field  = zap.Field
	Option = zap.Option
)

const (
	DebugLevel Level = zap.DebugLevel
	InfoLevel  Level = zap.InfoLevel
	WarnLevel  Level = zap.WarnLevel
	ErrorLevel Level = zap.ErrorLevel
	FatalLevel Level = zap.FatalLevel
)

var (
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
	AddStacktrace = zap.AddStacktrace
)

type Logger struct {
	l     *zap.Logger
	level zap.AtomicLevel
}

var (
	mu  sync.RWMutex
	std = New(os.Stderr, InfoLevel)
)

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

// New creates a logger with json output
func New(out io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	return newLogger(zapcore.NewJSONEncoder(cfg), out, level, opts...)
}

// DevLogger creates a logger with human readable console output
func DevLogger(out io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return newLogger(zapcore.NewConsoleEncoder(cfg), out, level, opts...)
}

//nolint:whitespace // editor/linter issue
func newLogger(
	enc zapcore.Encoder,
	out io.Writer,
	level Level,
	opts ...Option,
) *Logger {
	if out == nil {
		out = os.Stderr
	}
	al := zap.NewAtomicLevelAt(level)
	core := zapcore.NewCore(enc, zapcore.AddSync(out), al)
	return &Logger{l: zap.New(core, opts...), level: al}
}

// WithFilter applies zapfilter rules like "*:* debug+:tracker.*" on top of the
// configured level. An empty rule set leaves the logger untouched.
func (l *Logger) WithFilter(rules string) (*Logger, error) {
	if rules == "" {
		return l, nil
	}
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	filtered := l.l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}))
	return &Logger{l: filtered, level: l.level}, nil
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{l: l.l.With(fields...), level: l.level}
}

func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level)
}

func (l *Logger) Level() Level {
	return l.level.Level()
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.l.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.l.Fatal(msg, fields...)
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

// ResetDefault replaces the logger used by the package level functions
func ResetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func Debug(msg string, fields ...Field) { Default().Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { Default().Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { Default().Warn(msg, fields...) }
func Error(msg string, fields ...Field) { Default().Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { Default().Fatal(msg, fields...) }
func Sync() error                       { return Default().Sync() }
