package common

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger replaces the engine-wide logger. Passing nil restores the no-op logger.
//
// Parameters:
//   - l: the logger every engine package writes to
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// Logger returns the engine-wide logger. It is a no-op logger until SetLogger is called.
func Logger() *zap.Logger {
	return logger.Load()
}
