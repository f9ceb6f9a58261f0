package ba

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// errTimedOut marks a read/write that hit its poll deadline without making
// progress — a normal event in the worker loop, not a socket-IO failure
// (spec.md §7 kind 5 only covers genuine IO errors).
var errTimedOut = errors.New("ba: poll timed out")

type deadlineReader interface {
	io.Reader
	SetReadDeadline(time.Time) error
}

type deadlineWriter interface {
	io.Writer
	SetWriteDeadline(time.Time) error
}

// readWithDeadline is the cancellation point the worker loops use in place
// of poll(2): it bounds a single read to timeout, translating an expired
// deadline into errTimedOut so callers can distinguish "nothing to read
// yet" from a broken socket (spec.md §4.8, §5).
func readWithDeadline(ctx context.Context, r deadlineReader, buf []byte, timeout time.Duration) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if r == nil {
		return 0, errTimedOut
	}
	_ = r.SetReadDeadline(time.Now().Add(timeout))
	n, err := r.Read(buf)
	if err != nil && (os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded)) {
		return n, errTimedOut
	}
	return n, err
}

// writeWithDeadline bounds a single write to timeout the same way.
func writeWithDeadline(ctx context.Context, w deadlineWriter, buf []byte, timeout time.Duration) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if w == nil {
		return 0, errTimedOut
	}
	_ = w.SetWriteDeadline(time.Now().Add(timeout))
	n, err := w.Write(buf)
	if err != nil && (os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded)) {
		return n, errTimedOut
	}
	return n, err
}

// sleepOrDone sleeps for d unless ctx ends first, returning false when it
// was interrupted by cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
