package logger

import (
	"go.uber.org/zap"
)

// NewLogger builds the process-wide production logger. The logger is passed
// into every constructor explicitly; nothing logs through package globals.
func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}
