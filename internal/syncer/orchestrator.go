package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/migration"
	"github.com/lherron/hmp/internal/mode"
)

// DefaultDebounce is the quiet period after a mutation before a push.
const DefaultDebounce = 150 * time.Millisecond

const pushTimeout = requestTimeout

// Kind is the operation an Event reports on.
type Kind string

const (
	KindPush Kind = "push"
	KindPull Kind = "pull"
)

// State is the phase of an operation.
type State string

const (
	StateStart State = "start"
	StateOK    State = "ok"
	StateFail  State = "fail"
)

// Reason explains a kept-local pull or a failed operation.
type Reason string

const (
	ReasonUnsyncedNoAuth     Reason = "unsynced_local_no_auth"
	ReasonUnsyncedPushFailed Reason = "unsynced_local_push_failed"
	ReasonLocalNewer         Reason = "local_newer"
	ReasonMissingToken       Reason = "missing_token"
	ReasonUnauthorized       Reason = "unauthorized"
	ReasonHTTPError          Reason = "http_error"
	ReasonTransportError     Reason = "transport_error"
	ReasonLocalError         Reason = "local_error"
)

// Event is a sync status notification.
type Event struct {
	Kind      Kind
	State     State
	Reason    Reason
	KeptLocal bool
	Pulled    bool
	Status    int
	Summary   *migration.Summary
	Err       error
	At        time.Time
}

// Local is the client document store the orchestrator reads and writes.
type Local interface {
	Snapshot(ctx context.Context) (*legacy.Document, []byte, error)
	Replace(ctx context.Context, doc *legacy.Document) error
	UpdatedAt(ctx context.Context) (time.Time, bool, error)
	AccessToken(ctx context.Context) (string, error)
	LastSyncAt(ctx context.Context) (time.Time, bool, error)
	SetLastSyncAt(ctx context.Context, t time.Time) error
}

// Options configures an Orchestrator.
type Options struct {
	Mode     mode.Mode
	Debounce time.Duration
	Logger   logrus.FieldLogger
	Now      func() time.Time

	// EventBuffer sizes the event channel. Events are dropped when it is
	// full.
	EventBuffer int
}

// PullResult describes what a pull did.
type PullResult struct {
	Skipped   bool
	Pulled    bool
	KeptLocal bool
	Reason    Reason
}

// PushResult describes what a push did.
type PushResult struct {
	Skipped bool
	Summary *migration.Summary
}

// Orchestrator pushes local mutations and pulls the server document
// according to the client mode. Local edits are never overwritten before
// they reach the server, except in API_ONLY mode where the server wins.
type Orchestrator struct {
	local    Local
	remote   Remote
	mode     mode.Mode
	debounce time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
	events   chan Event

	timerMu sync.Mutex
	timer   *time.Timer
	armed   uint64
	closed  bool
	pending sync.WaitGroup

	pushMu sync.Mutex
	pulls  singleflight.Group
}

// New creates an orchestrator.
func New(local Local, remote Remote, opts Options) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	return &Orchestrator{
		local:    local,
		remote:   remote,
		mode:     opts.Mode,
		debounce: opts.Debounce,
		log:      opts.Logger,
		now:      opts.Now,
		events:   make(chan Event, opts.EventBuffer),
	}
}

// Mode returns the mode the orchestrator runs in.
func (o *Orchestrator) Mode() mode.Mode { return o.mode }

// Events returns the status channel. It is never closed.
func (o *Orchestrator) Events() <-chan Event { return o.events }

func (o *Orchestrator) emit(ev Event) {
	ev.At = o.now()
	select {
	case o.events <- ev:
	default:
		o.log.WithField("kind", ev.Kind).WithField("state", ev.State).Debug("sync event dropped")
	}
}

// NotifyMutation schedules a push after the debounce period. Mutations
// inside the period restart it, so a burst produces one push carrying the
// latest state. Nothing is scheduled without a stored access token.
func (o *Orchestrator) NotifyMutation() {
	if !o.mode.Pushes() {
		return
	}
	token, err := o.local.AccessToken(context.Background())
	if err != nil {
		o.log.WithError(err).Warn("failed to read access token, push not scheduled")
		return
	}
	if token == "" {
		return
	}

	o.timerMu.Lock()
	defer o.timerMu.Unlock()
	if o.closed {
		return
	}
	if o.timer != nil {
		o.timer.Stop()
	}
	o.armed++
	gen := o.armed
	o.timer = time.AfterFunc(o.debounce, func() { o.fire(gen) })
}

func (o *Orchestrator) fire(gen uint64) {
	o.timerMu.Lock()
	if o.closed {
		o.timerMu.Unlock()
		return
	}
	if o.armed != gen {
		// Re-armed after this timer fired; the newer timer owns the push.
		o.timerMu.Unlock()
		return
	}
	o.timer = nil
	o.pending.Add(1)
	o.timerMu.Unlock()
	defer o.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if _, err := o.Push(ctx); err != nil {
		o.log.WithError(err).Warn("debounced push failed")
	}
}

// Flush runs a scheduled push now instead of waiting for the debounce.
// It reports whether a push was pending.
func (o *Orchestrator) Flush(ctx context.Context) (bool, error) {
	o.timerMu.Lock()
	armed := o.timer != nil && o.timer.Stop()
	o.timer = nil
	o.timerMu.Unlock()
	if !armed {
		return false, nil
	}
	_, err := o.Push(ctx)
	return true, err
}

// Close cancels any scheduled push and waits for a running debounced push.
func (o *Orchestrator) Close() {
	o.timerMu.Lock()
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.timerMu.Unlock()
	o.pending.Wait()
}

// Push sends the current local document to the server. Pushes are
// serialized; each sends the document as it is when the push starts.
func (o *Orchestrator) Push(ctx context.Context) (PushResult, error) {
	if !o.mode.Pushes() {
		return PushResult{Skipped: true}, nil
	}
	o.pushMu.Lock()
	defer o.pushMu.Unlock()

	token, err := o.local.AccessToken(ctx)
	if err != nil {
		o.emit(Event{Kind: KindPush, State: StateFail, Reason: ReasonLocalError, Err: err})
		return PushResult{}, err
	}
	if token == "" {
		o.emit(Event{Kind: KindPush, State: StateFail, Reason: ReasonMissingToken, Status: 401, Err: ErrMissingToken})
		return PushResult{}, ErrMissingToken
	}

	o.emit(Event{Kind: KindPush, State: StateStart})
	doc, data, err := o.local.Snapshot(ctx)
	if err != nil {
		o.emit(Event{Kind: KindPush, State: StateFail, Reason: ReasonLocalError, Err: err})
		return PushResult{}, err
	}
	syncedAt, ok := doc.UpdatedTime()
	if !ok {
		syncedAt = o.now()
	}

	summary, err := o.remote.Import(ctx, token, data)
	if err != nil {
		o.emit(Event{Kind: KindPush, State: StateFail, Reason: remoteReason(err), Status: StatusOf(err), Err: err})
		return PushResult{}, err
	}
	if err := o.local.SetLastSyncAt(ctx, syncedAt); err != nil {
		o.emit(Event{Kind: KindPush, State: StateFail, Reason: ReasonLocalError, Err: err})
		return PushResult{}, err
	}

	o.log.WithField("updated_at", doc.UpdatedAt).Info("pushed local document")
	o.emit(Event{Kind: KindPush, State: StateOK, Summary: summary})
	return PushResult{Summary: summary}, nil
}

// Pull fetches the server document and replaces the local one unless that
// would lose local edits. Concurrent pulls share one request.
func (o *Orchestrator) Pull(ctx context.Context) (PullResult, error) {
	if !o.mode.Pulls() {
		return PullResult{Skipped: true}, nil
	}
	v, err, _ := o.pulls.Do("pull", func() (any, error) {
		return o.pull(ctx)
	})
	res, _ := v.(PullResult)
	return res, err
}

func (o *Orchestrator) keptLocal(reason Reason) PullResult {
	o.log.WithField("reason", reason).Info("kept local document")
	o.emit(Event{Kind: KindPull, State: StateOK, KeptLocal: true, Reason: reason})
	return PullResult{KeptLocal: true, Reason: reason}
}

func (o *Orchestrator) localFailure(err error) (PullResult, error) {
	o.emit(Event{Kind: KindPull, State: StateFail, Reason: ReasonLocalError, Err: err})
	return PullResult{}, err
}

func (o *Orchestrator) pull(ctx context.Context) (PullResult, error) {
	o.emit(Event{Kind: KindPull, State: StateStart})

	token, err := o.local.AccessToken(ctx)
	if err != nil {
		return o.localFailure(err)
	}

	if !o.mode.ServerPrimary() {
		unsynced, err := o.unsynced(ctx)
		if err != nil {
			return o.localFailure(err)
		}
		if unsynced {
			if token == "" {
				return o.keptLocal(ReasonUnsyncedNoAuth), nil
			}
			if res, err := o.Push(ctx); err != nil || res.Skipped {
				return o.keptLocal(ReasonUnsyncedPushFailed), nil
			}
		}
	}

	fetched, err := o.remote.Export(ctx, token)
	if err != nil {
		o.emit(Event{Kind: KindPull, State: StateFail, Reason: remoteReason(err), Status: StatusOf(err), Err: err})
		return PullResult{}, err
	}
	fetched.Normalize()

	if !o.mode.ServerPrimary() {
		localAt, localOK, err := o.local.UpdatedAt(ctx)
		if err != nil {
			return o.localFailure(err)
		}
		remoteAt, remoteOK := fetched.UpdatedTime()
		if localOK && remoteOK && localAt.After(remoteAt) {
			res := o.keptLocal(ReasonLocalNewer)
			if o.mode == mode.DoubleWrite {
				if _, err := o.Push(ctx); err != nil {
					o.log.WithError(err).Warn("push of newer local document failed")
				}
			}
			return res, nil
		}
	}

	if err := o.local.Replace(ctx, fetched); err != nil {
		return o.localFailure(err)
	}
	if err := o.local.SetLastSyncAt(ctx, o.now()); err != nil {
		return o.localFailure(err)
	}
	o.log.WithField("updated_at", fetched.UpdatedAt).Info("pulled server document")
	o.emit(Event{Kind: KindPull, State: StateOK, Pulled: true})
	return PullResult{Pulled: true}, nil
}

// unsynced reports whether the local document changed after the last
// successful sync.
func (o *Orchestrator) unsynced(ctx context.Context) (bool, error) {
	localAt, ok, err := o.local.UpdatedAt(ctx)
	if err != nil || !ok {
		return false, err
	}
	lastSync, ok, err := o.local.LastSyncAt(ctx)
	if err != nil {
		return false, err
	}
	return !ok || localAt.After(lastSync), nil
}

func remoteReason(err error) Reason {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized
	case StatusOf(err) != 0:
		return ReasonHTTPError
	}
	return ReasonTransportError
}
