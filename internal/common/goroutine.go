package common

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/ternarybob/arbor"
)

// Recover must be deferred directly. It stops a panic in the current
// goroutine, logs it with its stack and hands the recovered value to
// onPanic when one is given.
//
//	defer common.Recover(logger, "auditJob:"+id, func(any) { markFailed(id) })
func Recover(logger arbor.ILogger, name string, onPanic func(recovered any)) {
	r := recover()
	if r == nil {
		return
	}

	stack := string(debug.Stack())
	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", stack).
			Msg("Recovered from panic in goroutine")
	} else {
		fmt.Fprintf(os.Stderr, "panic in goroutine %s: %v\n%s\n", name, r, stack)
	}

	if onPanic != nil {
		onPanic(r)
	}
}

// SafeGo runs fn in a new goroutine. A panic is logged and does not take
// the process down.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name, nil)
		fn()
	}()
}
