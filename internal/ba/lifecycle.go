package ba

import "context"

// SetState drives the transport lifecycle state machine (spec.md §4.2).
// State transitions are serialized by the single controller goroutine; the
// worker only ever observes state through the signalling channel and its
// own per-iteration "may I run?" check.
func (t *Transport) SetState(ctx context.Context, target State) error {
	t.mu.Lock()

	if t.state == target {
		t.mu.Unlock()
		return nil
	}

	// A2DP sink guard: the sink worker cannot initialize before the socket
	// is acquired, so IDLE can only advance to PENDING.
	if t.Type.Profile == ProfileA2DPSink && t.state == StateIdle && target != StatePending {
		t.mu.Unlock()
		return nil
	}

	prev := t.state
	t.state = target
	handle := t.worker
	t.mu.Unlock()

	var err error

	switch target {
	case StateIdle:
		cancelAndJoin(handle)
		t.mu.Lock()
		t.worker = nil
		t.mu.Unlock()

	case StatePending:
		if t.Type.Profile == ProfileA2DPSink {
			err = t.acquire(ctx)
		}
		// Other profiles: the controller acquires on client demand, not here.

	case StateActive, StatePaused:
		if handle == nil {
			err = t.spawnWorker(ctx)
		}

	case StateLimbo:
		// Free() is the only legal caller; nothing further to do here.

	default:
	}

	if err != nil {
		t.env.Log.Warn("state transition failed, reverting to idle", "transport", t.Type, "from", prev, "to", target, "err", err)
		return t.SetState(ctx, StateIdle)
	}

	return nil
}
