// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrapper
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the service.
//
// Example:
//
//	common.SafeGo(logger, "pipelineRun", func() {
//	    orchestrator.Run(ctx, false)
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)

				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(buf[:n])).
						Msg("Recovered from panic in goroutine")
				}
			}
		}()
		fn()
	}()
}
