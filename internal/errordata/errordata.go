package errordata

import (
	"context"
	"sync"
)

type key struct{}

var errorDataKey key

// ErrorData carries the failure a handler answered with back up to the
// request logger. The user-facing body may hide the cause; this keeps it.
type ErrorData struct {
	mu     sync.Mutex
	err    error
	status int
}

func WithErrorData(ctx context.Context) context.Context {
	return context.WithValue(ctx, errorDataKey, &ErrorData{})
}

func GetErrorData(ctx context.Context) *ErrorData {
	ed, ok := ctx.Value(errorDataKey).(*ErrorData)
	if !ok {
		return nil
	}
	return ed
}

// Record keeps the first error recorded for the request.
func (ed *ErrorData) Record(err error, status int) {
	if err == nil {
		return
	}
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if ed.err != nil {
		return
	}
	ed.err = err
	ed.status = status
}

func (ed *ErrorData) Err() error {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.err
}

func (ed *ErrorData) Status() int {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.status
}
