package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	global = zap.Must(zap.NewDevelopment())
)

// Init builds the process logger for the given app mode and installs it
// as the package and zap globals.
func Init(mode string) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if mode == "prod" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}

	Set(l)
	return l, nil
}

// Set replaces the process logger.
func Set(l *zap.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
}

// L returns the process logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// S returns the sugared process logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.Logger {
	return L().With(zap.String("component", component))
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = L().Sync()
}
