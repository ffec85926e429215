package imageprovider

import (
	"sync"

	"github.com/birdsong-go/birdsong/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the imageprovider package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("imageprovider")
	})
	return serviceLogger
}
