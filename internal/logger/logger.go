package logger

import (
	"os"
	"regexp"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	userIDRegex = regexp.MustCompile(`\buser_id\s*=\s*[0-9a-fA-F-]+\b`)
)

var (
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	baseOnce sync.Once
	base     *zap.Logger
)

// Logger is a centralized structured logger
type Logger struct {
	out *zap.Logger
}

// New creates a new Logger sharing the process-wide zap core
func New() *Logger {
	baseOnce.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "time"
		encCfg.MessageKey = "message"
		encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), level)
		base = zap.New(core)
	})
	return &Logger{out: base}
}

// SetLevel adjusts the level of every Logger. Unknown names fall back to info.
func SetLevel(name string) {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)
}

// Sync flushes buffered entries
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

// Anonymize replaces sensitive information in logs (emails, tokens, IDs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	return s
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string) {
	l.out.Info(Anonymize(msg), zap.String("module", module))
}

func (l *Logger) Debug(module, msg string) {
	l.out.Debug(Anonymize(msg), zap.String("module", module))
}

func (l *Logger) Error(module, msg string, err error) {
	fields := []zap.Field{zap.String("module", module)}
	if err != nil {
		fields = append(fields, zap.String("error", Anonymize(err.Error())))
	}
	l.out.Error(Anonymize(msg), fields...)
}
