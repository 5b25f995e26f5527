package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

func New(debug bool) (*Logger, error) {
	var zl *zap.Logger
	var err error
	if debug {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	return &Logger{zl}, err
}

// NewWithCore builds a Logger over an existing core, used by tests to observe
// log output.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zap.New(core)}
}

func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// Named returns a child Logger with the name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}
