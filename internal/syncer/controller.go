// Package syncer keeps the local mirror consistent with the remote record
// store: a full pull at boot, then incremental reconciliation from the
// remote change feed. When the remote side is unreachable the controller
// degrades to local-mirror-only operation instead of failing.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/lmarchau/provider-atlas/internal/observability"
	"github.com/lmarchau/provider-atlas/internal/remote"
	"github.com/lmarchau/provider-atlas/internal/store"
)

// State is the controller's connectivity state. Booting transitions once to
// Online or Offline; a live-feed failure demotes Online to Offline. There is
// no promotion back to Online within a session — that takes a fresh boot.
type State int32

const (
	StateBooting State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateBooting:
		return "booting"
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Controller orchestrates pull, subscribe, and reconciliation.
type Controller struct {
	store   *store.Store
	remote  remote.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	state   atomic.Int32
	pullSeq atomic.Uint64
}

// New creates a controller in the Booting state. A nil remote store means
// the session is local-only from the start.
func New(st *store.Store, rem remote.Store, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	c := &Controller{
		store:   st,
		remote:  rem,
		logger:  logger,
		metrics: metrics,
	}
	c.setState(StateBooting)
	if rem == nil {
		st.SetOffline(true)
	}
	return c
}

// State returns the current connectivity state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// CheckReadiness reports nil once the controller has left Booting. Offline
// counts as ready: the directory keeps working against the local mirror.
func (c *Controller) CheckReadiness(_ context.Context) error {
	if c.State() == StateBooting {
		return errors.New("sync controller still booting")
	}
	return nil
}

// Run boots the controller and, when online, consumes the remote change
// feed until ctx is cancelled. It never returns a fatal error: every failure
// path degrades to offline operation.
func (c *Controller) Run(ctx context.Context) error {
	if c.remote == nil {
		c.goOffline("no remote store configured")
		<-ctx.Done()
		return nil
	}

	if err := c.PullAll(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.goOffline("initial pull failed: " + err.Error())
		<-ctx.Done()
		return nil
	}
	c.goOnline()

	err := c.remote.Subscribe(ctx, func(ev remote.ChangeEvent) {
		c.applyChange(ctx, ev)
	})
	if ctx.Err() != nil {
		return nil
	}
	// Logged, not fatal: local operation continues for the rest of the session.
	c.goOffline("change feed failed: " + err.Error())
	<-ctx.Done()
	return nil
}

// PullAll fetches the whole remote collection and replaces the local mirror
// wholesale. Each pull carries a sequence number; a pull that finishes after
// a newer one was issued is discarded, so a slow stale pull can never
// clobber fresher data.
func (c *Controller) PullAll(ctx context.Context) error {
	seq := c.pullSeq.Add(1)

	records, err := c.remote.GetAll(ctx)
	if err != nil {
		return err
	}

	if seq != c.pullSeq.Load() {
		c.metrics.PullsDiscarded.Inc()
		c.logger.Info("discarding stale pull result", "seq", seq, "latest", c.pullSeq.Load())
		return nil
	}

	c.store.ReplaceAll(records)
	resolved := c.store.ResolveMissing(ctx)
	c.logger.Info("full pull applied", "records", len(records), "resolved", resolved)
	return nil
}

// applyChange reconciles one incremental remote mutation into exactly the
// affected record and marker. The store only re-fits the viewport for
// records that are genuinely new to the mirror.
func (c *Controller) applyChange(ctx context.Context, ev remote.ChangeEvent) {
	c.metrics.ChangesApplied.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case remote.ChangeAdded, remote.ChangeModified:
		_, added, _ := c.store.UpsertLocal(ctx, ev.Record)
		c.logger.Debug("remote change applied", "type", ev.Type, "id", ev.ID, "added", added)
	case remote.ChangeRemoved:
		c.store.RemoveByID(ev.ID)
		c.logger.Debug("remote removal applied", "id", ev.ID)
	default:
		c.logger.Warn("unknown remote change type", "type", ev.Type)
	}
}

func (c *Controller) goOnline() {
	c.setState(StateOnline)
	c.store.SetOffline(false)
	c.logger.Info("sync controller online")
}

func (c *Controller) goOffline(reason string) {
	c.setState(StateOffline)
	c.store.SetOffline(true)
	c.logger.Warn("sync controller offline, continuing against local mirror", "reason", reason)
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.SyncState.Set(float64(s))
}
