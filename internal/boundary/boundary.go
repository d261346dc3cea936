// Package boundary contains panics so a failure in one page or one background
// fetch does not take the process down.
package boundary

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"property-search/internal/logging"
	"property-search/internal/metrics"
)

// UncaughtRuntimeError is a recovered panic.
type UncaughtRuntimeError struct {
	Value any
	Stack []byte
}

func (e *UncaughtRuntimeError) Error() string {
	if err, ok := e.Value.(error); ok {
		return "uncaught runtime error: " + err.Error()
	}
	return fmt.Sprintf("uncaught runtime error: %v", e.Value)
}

func (e *UncaughtRuntimeError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Message is the text shown on the fallback page.
func (e *UncaughtRuntimeError) Message() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func newUncaught(v any) *UncaughtRuntimeError {
	return &UncaughtRuntimeError{Value: v, Stack: debug.Stack()}
}

// Guard runs fn and turns a panic inside it into an *UncaughtRuntimeError.
// Use it at every goroutine boundary; a panic there cannot be recovered by the caller.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Panics.WithLabelValues("goroutine").Inc()
			err = newUncaught(r)
		}
	}()
	return fn()
}

// Fallback renders the response for a request whose handler panicked.
type Fallback func(c *gin.Context, err *UncaughtRuntimeError)

// Middleware recovers panics raised by the handlers of one route group and answers with
// fallback. scope labels the group in logs and metrics (page, api).
func Middleware(scope string, fallback Fallback) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if isBrokenConnection(r) {
				_ = c.Error(fmt.Errorf("client went away: %v", r))
				c.Abort()
				return
			}

			err := newUncaught(r)
			metrics.Panics.WithLabelValues(scope).Inc()
			logging.FromContext(c.Request.Context()).Error("uncaught error",
				"component", "boundary",
				"scope", scope,
				"path", c.Request.URL.Path,
				"error", err.Message(),
				"stack", string(err.Stack))
			_ = c.Error(err)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			fallback(c, err)
			c.Abort()
		}()
		c.Next()
	}
}

// JSONFallback answers API routes with a 500 JSON body.
func JSONFallback(c *gin.Context, err *UncaughtRuntimeError) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func isBrokenConnection(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if errors.As(err, &ne) {
		var se *os.SyscallError
		if errors.As(ne, &se) {
			msg := strings.ToLower(se.Error())
			return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
		}
	}
	return errors.Is(err, http.ErrAbortHandler)
}

// Go runs fn on a new goroutine under Guard and logs whatever it returns.
func Go(name string, fn func() error) {
	go func() {
		if err := Guard(fn); err != nil {
			slog.Error("background task failed", "component", "boundary", "task", name, "error", err)
		}
	}()
}
