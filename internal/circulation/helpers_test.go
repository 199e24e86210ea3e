package circulation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/circdesk/internal/api"
	"github.com/lehigh-university-libraries/circdesk/internal/apitest"
	"github.com/lehigh-university-libraries/circdesk/internal/circulation"
	"github.com/lehigh-university-libraries/circdesk/internal/journal"
	"github.com/stretchr/testify/require"
)

const (
	testResetDelay = 50 * time.Millisecond
	waitTimeout    = 2 * time.Second
	tick           = 5 * time.Millisecond
)

// fakeCamera behaves like capture.Session: the device is released before the
// decoded code is handed on.
type fakeCamera struct {
	mu        sync.Mutex
	active    bool
	onDecoded func(string)
	starts    int
	startErr  error
}

func (f *fakeCamera) Start(ctx context.Context, onDecoded func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	f.onDecoded = onDecoded
	f.starts++
	return nil
}

func (f *fakeCamera) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.onDecoded = nil
}

func (f *fakeCamera) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// scan simulates a successful decode; it reports false when nothing is capturing
func (f *fakeCamera) scan(code string) bool {
	f.mu.Lock()
	fn := f.onDecoded
	if !f.active || fn == nil {
		f.mu.Unlock()
		return false
	}
	f.active = false
	f.onDecoded = nil
	f.mu.Unlock()
	fn(code)
	return true
}

type memRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *memRecorder) Record(ctx context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRecorder) all() []journal.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Entry(nil), r.entries...)
}

type desk struct {
	*circulation.Controller
	cam *fakeCamera
}

func startDesk(t *testing.T, srv *apitest.Server, opts ...circulation.Option) *desk {
	t.Helper()
	return startDeskWith(t, srv, &fakeCamera{}, opts...)
}

func startDeskWith(t *testing.T, srv *apitest.Server, cam *fakeCamera, opts ...circulation.Option) *desk {
	t.Helper()
	client := api.NewClient(srv.URL, 5*time.Second)
	opts = append([]circulation.Option{circulation.WithResetDelay(testResetDelay)}, opts...)
	c := circulation.NewController(client, cam, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		c.Wait()
	})

	if cam.startErr == nil {
		require.Eventually(t, cam.Active, waitTimeout, tick, "capture never started")
	}
	return &desk{Controller: c, cam: cam}
}

func (d *desk) scan(t *testing.T, code string) {
	t.Helper()
	require.Eventually(t, d.cam.Active, waitTimeout, tick, "capture not armed")
	require.True(t, d.cam.scan(code))
	d.waitFor(t, func(s circulation.Snapshot) bool { return s.Code == code })
}

func (d *desk) waitFor(t *testing.T, cond func(circulation.Snapshot) bool) circulation.Snapshot {
	t.Helper()
	var got circulation.Snapshot
	require.Eventually(t, func() bool {
		s := d.Snapshot()
		if !cond(s) {
			return false
		}
		got = s
		return true
	}, waitTimeout, tick, "condition never met")
	return got
}

func idle(s circulation.Snapshot) bool {
	return !s.Captured() && s.Feedback == nil && s.Lookup == nil && s.Capturing && !s.Pending
}

func settled(s circulation.Snapshot) bool {
	return !s.Pending && s.Phase == circulation.PhaseFeedback
}

var errCameraBusy = errors.New("device busy")
