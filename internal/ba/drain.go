package ba

import (
	"context"
	"sync"
)

// DrainPCM implements the drain handshake of spec.md §4.10. It is
// meaningful only for the A2DP source and SCO speaker directions, and only
// while the transport is ACTIVE: the caller locks the drain mutex, pushes a
// PCM-SYNC signal, waits on the drain condvar, then sleeps for the
// configured settle delay because neither the daemon nor the profile
// offers a reliable end-of-stream signal.
func (t *Transport) DrainPCM(ctx context.Context) error {
	var cond *sync.Cond

	switch {
	case t.Type.Profile == ProfileA2DPSource:
		cond = t.A2DP.drainCond
	case t.Type.Profile == ProfileHFPAG || t.Type.Profile == ProfileHSPAG:
		cond = t.SCO.spkDrainCond
	default:
		return nil
	}

	if t.State() != StateActive {
		return nil
	}

	cond.L.Lock()
	t.sig.push(signal{kind: sigPCMSync})
	cond.Wait()
	cond.L.Unlock()

	sleepOrDone(ctx, t.env.Tunables.DrainSettleDelay)

	t.env.Log.Debug("PCM drained", "transport", t.Type)
	return nil
}
