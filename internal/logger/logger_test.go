package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestAnonymize(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"email":   {"login for almaz@example.com", "login for [REDACTED_EMAIL]"},
		"token":   {"Bearer eyJhbGciOiJIUzI1NiJ9.e30.sig", "Bearer [REDACTED_TOKEN]"},
		"user id": {"Account registered with user_id=0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b", "Account registered with user_id=[USER_ID]"},
		"plain":   {"Migrations applied successfully", "Migrations applied successfully"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Anonymize(tc.in))
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	SetLevel("nonsense")
	assert.Equal(t, zapcore.InfoLevel, level.Level())
}

func TestLoggerMethodsDoNotPanic(t *testing.T) {
	l := New()
	assert.Same(t, l.out, New().out)
	assert.NotPanics(t, func() {
		l.Info("test", "info message")
		l.Debug("test", "debug message")
		l.Error("test", "error message", nil)
	})
}
