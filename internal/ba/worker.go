package ba

import (
	"context"
	"fmt"
)

// workerHandle tracks a running IO worker goroutine. A nil *workerHandle on
// a transport is the Go-idiomatic stand-in for the C implementation's
// "thread == main thread" sentinel (spec.md §3, §5): no handle, no worker.
type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// selfWorkerKey is the context key spawnWorker attaches to the context it
// hands to the worker goroutine (both the routine itself and its deferred
// cleanup), carrying that goroutine's own *workerHandle. It is the
// Go-idiomatic stand-in for ba-transport.c's transport_pthread_cancel
// comparing pthread_self() against the stored thread id: any code running
// with this context can ask "am I the worker this handle belongs to?"
// instead of blocking on a join that can only ever be satisfied by itself.
type selfWorkerKeyType struct{}

var selfWorkerKey = selfWorkerKeyType{}

// isSelf reports whether ctx was handed to the very worker goroutine handle
// identifies — i.e. whether the caller is running on that worker's own
// goroutine rather than some other (controller) goroutine.
func isSelf(ctx context.Context, handle *workerHandle) bool {
	self, _ := ctx.Value(selfWorkerKey).(*workerHandle)
	return self != nil && self == handle
}

// cancelAndJoin synchronously cancels and waits for the worker described by
// handle, mirroring transport_pthread_cancel's cancel-then-join pair
// (spec.md §5). A nil handle (no worker alive) is a no-op.
func cancelAndJoin(handle *workerHandle) {
	if handle == nil {
		return
	}
	handle.cancel()
	<-handle.done
}

// spawnWorker picks the IO routine for (profile, codec) per spec.md §4.3
// and launches it as a goroutine, recording cancel/done on the transport.
// Returns ErrCodecUnsupported if no routine exists for the combination.
func (t *Transport) spawnWorker(ctx context.Context) error {
	routine, label, err := t.workerRoutine()
	if err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	handle := &workerHandle{cancel: cancel, done: done}
	selfCtx := context.WithValue(workerCtx, selfWorkerKey, handle)

	t.mu.Lock()
	t.worker = handle
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer t.workerCleanup(selfCtx, handle)
		routine(selfCtx)
	}()

	t.env.Log.Debug("spawned IO worker", "transport", t.Type, "routine", label)
	return nil
}

// workerCleanup runs when a worker goroutine returns (whether cancelled or
// because of a fatal socket error), invoking the profile release hook and
// clearing the transport's worker handle — the Go equivalent of
// transport_pthread_cleanup. ctx still carries this worker's own identity
// (selfWorkerKey), so release hooks that might otherwise try to tear the
// transport down synchronously (releaseRFCOMM) can detect that and avoid
// joining themselves.
func (t *Transport) workerCleanup(ctx context.Context, handle *workerHandle) {
	if err := t.release(ctx); err != nil && !IsPeerGone(err) {
		t.env.Log.Warn("worker cleanup release failed", "transport", t.Type, "err", err)
	}
	t.mu.Lock()
	if t.worker == handle {
		t.worker = nil
	}
	t.mu.Unlock()
}

// workerRoutine selects the worker function for the transport's
// (profile, codec) combination (spec.md §4.3).
func (t *Transport) workerRoutine() (func(context.Context), string, error) {
	switch {
	case t.Type.Profile&ProfileRFCOMM != 0:
		return t.runRFCOMMWorker, "rfcomm-at", nil

	case t.Type.Profile&ProfileMaskSCO != 0:
		return t.runSCOWorker, "sco-io", nil

	case t.Type.Profile == ProfileA2DPSource:
		switch t.Type.A2DP {
		case A2DPCodecSBC:
			return t.runA2DPSourceSBC, "a2dp-source-sbc", nil
		case A2DPCodecAAC:
			return t.runA2DPSourceAAC, "a2dp-source-aac", nil
		case A2DPCodecAptX:
			return t.runA2DPSourceAptX, "a2dp-source-aptx", nil
		case A2DPCodecLDAC:
			return t.runA2DPSourceLDAC, "a2dp-source-ldac", nil
		default:
			return nil, "", newErr(ErrCodecUnsupported, "spawnWorker", fmt.Errorf("unsupported codec for %s", t.Type))
		}

	case t.Type.Profile == ProfileA2DPSink:
		switch t.Type.A2DP {
		case A2DPCodecSBC:
			return t.runA2DPSinkSBC, "a2dp-sink-sbc", nil
		case A2DPCodecAAC:
			return t.runA2DPSinkAAC, "a2dp-sink-aac", nil
		default:
			return nil, "", newErr(ErrCodecUnsupported, "spawnWorker", fmt.Errorf("unsupported codec for %s", t.Type))
		}

	default:
		return nil, "", newErr(ErrCodecUnsupported, "spawnWorker", fmt.Errorf("unsupported codec for %s", t.Type))
	}
}

// acquire dispatches the profile-specific acquire hook (Design Notes §9:
// "replace [hook functions] with a tagged variant ... dispatched in a
// single place"). RFCOMM installs no acquire hook.
func (t *Transport) acquire(ctx context.Context) error {
	switch {
	case t.Type.Profile&ProfileRFCOMM != 0:
		return nil
	case t.Type.Profile&ProfileMaskSCO != 0:
		return t.acquireSCO()
	case t.Type.Profile&ProfileMaskA2DP != 0:
		return t.acquireA2DP(ctx)
	default:
		return nil
	}
}

// release dispatches the profile-specific release hook. ctx carries the
// calling goroutine's worker identity (if any), so releaseRFCOMM can tell
// whether it is being invoked from inside its own worker's cleanup.
func (t *Transport) release(ctx context.Context) error {
	switch {
	case t.Type.Profile&ProfileRFCOMM != 0:
		return t.releaseRFCOMM(ctx)
	case t.Type.Profile&ProfileMaskSCO != 0:
		return t.releaseSCO()
	case t.Type.Profile&ProfileMaskA2DP != 0:
		return t.releaseA2DP()
	default:
		return nil
	}
}
