package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/localstore"
	"github.com/lherron/hmp/internal/logging"
	"github.com/lherron/hmp/internal/migration"
	"github.com/lherron/hmp/internal/mode"
)

type fakeRemote struct {
	mu        sync.Mutex
	doc       *legacy.Document
	exportErr error
	importErr error
	exports   int
	imports   [][]byte
}

func (f *fakeRemote) Export(_ context.Context, _ string) (*legacy.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports++
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return legacy.Clone(f.doc)
}

func (f *fakeRemote) Import(_ context.Context, _ string, body []byte) (*migration.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.importErr != nil {
		return nil, f.importErr
	}
	f.imports = append(f.imports, append([]byte(nil), body...))
	return &migration.Summary{}, nil
}

func (f *fakeRemote) importCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imports)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setup(t *testing.T, m mode.Mode) (*localstore.Store, *fakeRemote, *Orchestrator, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	local, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	local.SetClock(c.now)

	remote := &fakeRemote{}
	o := New(local, remote, Options{
		Mode:     m,
		Debounce: 20 * time.Millisecond,
		Logger:   logging.Discard(),
		Now:      c.now,
	})
	t.Cleanup(o.Close)
	return local, remote, o, c
}

func rename(t *testing.T, s *localstore.Store, name string) {
	t.Helper()
	_, err := s.Mutate(context.Background(), func(d *legacy.Document) error {
		d.Hotels["h1"] = legacy.Hotel{ID: "h1", Name: name}
		return nil
	})
	require.NoError(t, err)
}

func remoteDoc(at time.Time, name string) *legacy.Document {
	doc := legacy.New(at)
	doc.Hotels["h1"] = legacy.Hotel{ID: "h1", Name: name}
	return doc
}

func drain(o *Orchestrator) []Event {
	var out []Event
	for {
		select {
		case ev := <-o.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestNotifyMutation_CoalescesBurst(t *testing.T) {
	local, remote, o, c := setup(t, mode.DoubleWrite)
	ctx := context.Background()
	require.NoError(t, local.SetAccessToken(ctx, "tok"))

	for _, name := range []string{"first", "second", "third"} {
		c.advance(time.Second)
		rename(t, local, name)
		o.NotifyMutation()
	}

	require.Eventually(t, func() bool { return remote.importCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 1, remote.importCount())

	pushed, err := legacy.Decode(remote.imports[0])
	require.NoError(t, err)
	assert.Equal(t, "third", pushed.Hotels["h1"].Name)

	lastSync, ok, err := local.LastSyncAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pushed.UpdatedAt, domain.FormatTime(lastSync))
}

func TestNotifyMutation_IgnoredWithoutPushMode(t *testing.T) {
	local, remote, o, _ := setup(t, mode.LocalOnly)
	require.NoError(t, local.SetAccessToken(context.Background(), "tok"))
	rename(t, local, "x")
	o.NotifyMutation()

	flushed, err := o.Flush(context.Background())
	require.NoError(t, err)
	assert.False(t, flushed)
	assert.Zero(t, remote.importCount())
}

func TestNotifyMutation_NotScheduledWithoutToken(t *testing.T) {
	local, remote, o, _ := setup(t, mode.DoubleWrite)
	rename(t, local, "x")
	o.NotifyMutation()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, drain(o))
	assert.Zero(t, remote.importCount())

	flushed, err := o.Flush(context.Background())
	require.NoError(t, err)
	assert.False(t, flushed)
}

func TestNotifyMutation_StaleTimerKeepsNewerSchedule(t *testing.T) {
	local, remote, o, _ := setup(t, mode.DoubleWrite)
	o.debounce = time.Hour
	ctx := context.Background()
	require.NoError(t, local.SetAccessToken(ctx, "tok"))
	rename(t, local, "x")

	o.NotifyMutation()
	o.NotifyMutation()
	// The first timer firing late must not clear the second schedule.
	o.fire(1)
	assert.Zero(t, remote.importCount())

	flushed, err := o.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, 1, remote.importCount())
}

func TestFlush_RunsPendingPush(t *testing.T) {
	local, remote, o, _ := setup(t, mode.APIOnly)
	o.debounce = time.Hour
	ctx := context.Background()
	require.NoError(t, local.SetAccessToken(ctx, "tok"))
	rename(t, local, "x")
	o.NotifyMutation()

	flushed, err := o.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, 1, remote.importCount())
}

func TestPush_MissingToken(t *testing.T) {
	_, _, o, _ := setup(t, mode.DoubleWrite)
	_, err := o.Push(context.Background())
	require.ErrorIs(t, err, ErrMissingToken)

	events := drain(o)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, StateFail, last.State)
	assert.Equal(t, ReasonMissingToken, last.Reason)
	assert.Equal(t, 401, last.Status)
}

func TestPush_SkippedInReadFallback(t *testing.T) {
	_, remote, o, _ := setup(t, mode.APIReadFallback)
	res, err := o.Push(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, remote.importCount())
}

func TestPull_UnsyncedWithoutAuthKeepsLocal(t *testing.T) {
	local, remote, o, c := setup(t, mode.DoubleWrite)
	ctx := context.Background()
	rename(t, local, "mine")
	before, err := local.Raw(ctx)
	require.NoError(t, err)
	remote.doc = remoteDoc(c.now().Add(time.Hour), "theirs")

	res, err := o.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, res.KeptLocal)
	assert.Equal(t, ReasonUnsyncedNoAuth, res.Reason)
	assert.Zero(t, remote.exports)

	after, err := local.Raw(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPull_UnsyncedPushFailureKeepsLocal(t *testing.T) {
	local, remote, o, c := setup(t, mode.DoubleWrite)
	ctx := context.Background()
	require.NoError(t, local.SetAccessToken(ctx, "tok"))
	rename(t, local, "mine")
	remote.doc = remoteDoc(c.now().Add(time.Hour), "theirs")
	remote.importErr = &StatusError{Status: 500}

	res, err := o.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, res.KeptLocal)
	assert.Equal(t, ReasonUnsyncedPushFailed, res.Reason)

	doc, err := local.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mine", doc.Hotels["h1"].Name)
}

func TestPull_UnsyncedPushesThenPulls(t *testing.T) {
	local, remote, o, c := setup(t, mode.DoubleWrite)
	ctx := context.Background()
	require.NoError(t, local.SetAccessToken(ctx, "tok"))
	rename(t, local, "mine")
	remote.doc = remoteDoc(c.now().Add(time.Hour), "merged")

	res, err := o.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, res.Pulled)
	assert.Equal(t, 1, remote.importCount())

	doc, err := local.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "merged", doc.Hotels["h1"].Name)
}

func TestPull_LocalNewerIsKeptAndPushed(t *testing.T) {
	local, remote, o, c := setup(t, mode.DoubleWrite)
	ctx := context.Background()
	require.NoError(t, local.SetAccessToken(ctx, "tok"))
	remote.doc = remoteDoc(c.now(), "theirs")
	c.advance(time.Minute)
	rename(t, local, "mine")
	c.advance(time.Minute)
	require.NoError(t, local.SetLastSyncAt(ctx, c.now()))

	res, err := o.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, res.KeptLocal)
	assert.Equal(t, ReasonLocalNewer, res.Reason)
	assert.Equal(t, 1, remote.importCount(), "newer local document is pushed")

	doc, err := local.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mine", doc.Hotels["h1"].Name)
}

func TestPull_Unauthorized(t *testing.T) {
	local, remote, o, c := setup(t, mode.DoubleWrite)
	ctx := context.Background()
	require.NoError(t, local.SetAccessToken(ctx, "expired"))
	_, err := local.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, local.SetLastSyncAt(ctx, c.now().Add(time.Second)))
	remote.exportErr = &StatusError{Status: 401, Code: "invalid_access_token"}

	_, err = o.Pull(ctx)
	require.ErrorIs(t, err, ErrUnauthorized)

	events := drain(o)
	last := events[len(events)-1]
	assert.Equal(t, KindPull, last.Kind)
	assert.Equal(t, StateFail, last.State)
	assert.Equal(t, ReasonUnauthorized, last.Reason)
	assert.Equal(t, 401, last.Status)
}

func TestPull_APIOnlyServerWins(t *testing.T) {
	local, remote, o, c := setup(t, mode.APIOnly)
	ctx := context.Background()
	remote.doc = remoteDoc(c.now(), "theirs")
	c.advance(time.Hour)
	rename(t, local, "mine")

	res, err := o.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, res.Pulled)
	assert.Zero(t, remote.importCount())

	doc, err := local.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "theirs", doc.Hotels["h1"].Name)
	assert.Equal(t, remote.doc.UpdatedAt, doc.UpdatedAt)

	lastSync, ok, err := local.LastSyncAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.now().Equal(lastSync))
}

func TestPull_SkippedInLocalOnly(t *testing.T) {
	_, remote, o, _ := setup(t, mode.LocalOnly)
	res, err := o.Pull(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, remote.exports)
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", srv.Client(), logging.Discard())
	c.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	return c
}

func TestClient_Export(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, exportPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		doc := remoteDoc(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Seaside")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": doc})
	})

	doc, err := c.Export(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Seaside", doc.Hotels["h1"].Name)
}

func TestClient_ImportSendsBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		doc, err := legacy.Decode(body)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"summary": map[string]any{"created": map[string]int{"hotels": len(doc.Hotels)}},
		})
	})

	data, err := legacy.Encode(remoteDoc(time.Now(), "Seaside"))
	require.NoError(t, err)
	summary, err := c.Import(context.Background(), "tok", data)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Created.Hotels)
}

func TestClient_StatusErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_access_token"}`))
	})

	_, err := c.Export(context.Background(), "tok")
	require.ErrorIs(t, err, ErrUnauthorized)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "invalid_access_token", se.Code)
	assert.Equal(t, ReasonUnauthorized, remoteReason(err))
}

func TestClient_HealthRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_MigrationRequestsAreSentOnce(t *testing.T) {
	var imports, exports atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			imports.Add(1)
		} else {
			exports.Add(1)
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Import(context.Background(), "tok", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Equal(t, ReasonHTTPError, remoteReason(err))
	assert.Equal(t, int32(1), imports.Load())

	_, err = c.Export(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, int32(1), exports.Load())
}

func TestClient_TransportErrorIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(base, nil, logging.Discard())
	c.NewBackOff = func() backoff.BackOff {
		t.Fatal("migration requests must not use the retry policy")
		return nil
	}
	_, err := c.Import(context.Background(), "tok", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, ReasonTransportError, remoteReason(err))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":"payload_too_large"}`))
	})

	_, err := c.Import(context.Background(), "tok", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusOf(err))
	assert.Equal(t, ReasonHTTPError, remoteReason(err))
	assert.Equal(t, int32(1), calls.Load())
}
