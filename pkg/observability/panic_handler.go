package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic is meant for defer statements around background work
// such as the mail sync and reminder cron jobs:
//
//	defer observability.RecoverPanic(logger, "scheduled mail sync")
//
// A panic is logged at Error level with its value and stack trace, and
// the goroutine returns normally instead of killing the process.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback is RecoverPanic plus a cleanup hook that
// runs after the panic is logged. The bot's update loop uses it to
// cancel the shared context so the cron sweeps stop too:
//
//	defer observability.RecoverPanicWithCallback(logger, "telegram updates loop", cancel)
//
// The callback only runs when a panic actually occurred.
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}

// MustRecover converts a recovered panic value into an error, for code
// that feeds untrusted input to parsers and wants a failure instead of
// a crash:
//
//	defer func() {
//	    if rerr := observability.MustRecover(recover()); rerr != nil {
//	        err = rerr
//	    }
//	}()
//
// Returns nil when r is nil. The stack trace is not carried in the
// error; log at the recovery site when it matters.
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
