package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"a55pay-sdk/messaging"
	"a55pay-sdk/models"
	"a55pay-sdk/page"
	"a55pay-sdk/types"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]*models.ChargeRecord
	err     error
	gate    chan struct{}
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, chargeID string) (*models.ChargeRecord, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.records[chargeID], nil
}

func (f *fakeFetcher) set(id, status, redirect string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = map[string]*models.ChargeRecord{}
	}
	f.records[id] = &models.ChargeRecord{ChargeUUID: id, Status: status, RedirectURL: redirect}
}

type recorder struct {
	mu      sync.Mutex
	results []types.Result
	errs    []error
	events  []types.Event
}

func (r *recorder) delivery() *types.Delivery {
	return types.NewDelivery(types.Callbacks{
		OnSuccess: func(res types.Result) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.results = append(r.results, res)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		OnEvent: func(e types.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
		},
	})
}

func (r *recorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results), len(r.errs), len(r.events)
}

const providerOrigin = "https://acs.issuer.example"

func newChannel(t *testing.T, opts Options) (*Channel, *page.Headless, *messaging.Bus, *fakeFetcher) {
	t.Helper()
	doc := page.NewHeadless(page.Environment{})
	bus := messaging.NewBus()
	fetcher := &fakeFetcher{}
	opts.Origins = []string{providerOrigin}
	return NewChannel(doc, bus, fetcher, opts), doc, bus, fetcher
}

func complete(bus *messaging.Bus, chargeID string) {
	bus.Publish(messaging.Message{
		Origin: providerOrigin,
		Data:   []byte(`{"event":"3ds-auth-complete","chargeUuid":"` + chargeID + `"}`),
	})
}

func TestOpenValidates(t *testing.T) {
	t.Parallel()

	ch, _, _, _ := newChannel(t, Options{})
	require.ErrorIs(t, ch.Open("", "c1", (&recorder{}).delivery()), types.ErrValidation)
	require.Equal(t, "", ch.Active())
}

func TestSecondOpenTearsDownFirst(t *testing.T) {
	t.Parallel()

	ch, doc, bus, fetcher := newChannel(t, Options{})
	first, second := &recorder{}, &recorder{}

	require.NoError(t, ch.Open("https://acs.example/a", "c1", first.delivery()))
	require.NoError(t, ch.Open("https://acs.example/b", "c2", second.delivery()))

	overlays := doc.Body().QueryAll("#" + OverlayID)
	require.Len(t, overlays, 1)
	require.Equal(t, "c2", overlays[0].Attr("data-charge-uuid"))
	require.Equal(t, "https://acs.example/b", doc.ElementByID(FrameID).Attr("src"))
	require.Equal(t, 1, bus.Listeners())
	require.Equal(t, "c2", ch.Active())

	// A completion for the superseded charge is not attributed to the new one
	fetcher.set("c1", "confirmed", "")
	complete(bus, "c1")
	time.Sleep(20 * time.Millisecond)

	fetcher.set("c2", "paid", "")
	complete(bus, "c2")
	require.Eventually(t, func() bool {
		n, _, _ := second.counts()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	r, e, ev := first.counts()
	require.Zero(t, r+e+ev, "superseded flow receives no callback")
	require.Equal(t, 0, bus.Listeners())
	require.Nil(t, doc.ElementByID(OverlayID))
}

func TestChallengeTimesOutOnce(t *testing.T) {
	t.Parallel()

	ch, doc, bus, _ := newChannel(t, Options{Window: 30 * time.Millisecond})
	rec := &recorder{}
	require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

	require.Eventually(t, func() bool {
		_, e, _ := rec.counts()
		return e == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	_, e, _ := rec.counts()
	require.Equal(t, 1, e)
	require.ErrorIs(t, rec.errs[0], types.ErrTimeout)
	require.Nil(t, doc.ElementByID(OverlayID))
	require.Equal(t, 0, bus.Listeners())
	require.False(t, ch.Cancel())
}

func TestCompletionStatuses(t *testing.T) {
	t.Parallel()

	t.Run("success with redirect", func(t *testing.T) {
		ch, doc, bus, fetcher := newChannel(t, Options{RedirectDelay: 10 * time.Millisecond})
		rec := &recorder{}
		fetcher.set("c1", "Confirmed", "https://shop.example/thanks")
		require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

		complete(bus, "c1")
		require.Eventually(t, func() bool {
			return len(doc.Navigations()) == 1
		}, time.Second, 5*time.Millisecond)

		require.Len(t, rec.results, 1)
		require.Equal(t, "confirmed", rec.results[0].Status)
		require.Equal(t, "https://shop.example/thanks", doc.Navigations()[0])
		require.Nil(t, doc.ElementByID(OverlayID))
	})

	t.Run("declined", func(t *testing.T) {
		ch, _, bus, fetcher := newChannel(t, Options{})
		rec := &recorder{}
		fetcher.set("c1", "declined", "")
		require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

		complete(bus, "c1")
		require.Eventually(t, func() bool {
			_, e, _ := rec.counts()
			return e == 1
		}, time.Second, 5*time.Millisecond)
		require.ErrorIs(t, rec.errs[0], types.ErrProvider)
		require.Equal(t, "", ch.Active())
	})

	t.Run("pending keeps the slot open", func(t *testing.T) {
		ch, doc, bus, fetcher := newChannel(t, Options{})
		rec := &recorder{}
		fetcher.set("c1", "pending", "")
		require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

		complete(bus, "c1")
		complete(bus, "c1")
		require.Eventually(t, func() bool {
			_, _, ev := rec.counts()
			return ev == 2
		}, time.Second, 5*time.Millisecond)
		require.True(t, rec.events[0].Pending)
		require.NotNil(t, doc.ElementByID(OverlayID))
		require.Equal(t, "c1", ch.Active())
	})

	t.Run("refresh failure keeps the slot open", func(t *testing.T) {
		ch, doc, bus, fetcher := newChannel(t, Options{})
		fetcher.err = types.NewNetworkError("Failed to fetch charge data", errors.New("reset"))
		rec := &recorder{}
		require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

		complete(bus, "c1")
		require.Eventually(t, func() bool {
			fetcher.mu.Lock()
			defer fetcher.mu.Unlock()
			return fetcher.calls == 1
		}, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)

		r, e, ev := rec.counts()
		require.Zero(t, r+e+ev)
		require.NotNil(t, doc.ElementByID(OverlayID))
	})
}

func TestIgnoresForeignMessages(t *testing.T) {
	t.Parallel()

	ch, _, bus, fetcher := newChannel(t, Options{})
	fetcher.set("c1", "paid", "")
	require.NoError(t, ch.Open("https://acs.example/a", "c1", (&recorder{}).delivery()))

	bus.Publish(messaging.Message{Origin: "https://evil.example", Data: []byte(`{"event":"3ds-auth-complete","chargeUuid":"c1"}`)})
	bus.Publish(messaging.Message{Origin: providerOrigin, Data: []byte(`{"event":"something-else"}`)})
	bus.Publish(messaging.Message{Origin: providerOrigin, Data: []byte(`not json`)})
	time.Sleep(20 * time.Millisecond)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	require.Zero(t, fetcher.calls)
	require.Equal(t, "c1", ch.Active())
}

func TestLateRefreshIsDiscarded(t *testing.T) {
	t.Parallel()

	ch, _, bus, fetcher := newChannel(t, Options{})
	fetcher.gate = make(chan struct{})
	fetcher.set("c1", "paid", "")
	rec := &recorder{}
	require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

	complete(bus, "c1")
	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls == 1
	}, time.Second, 5*time.Millisecond)

	require.True(t, ch.Cancel())
	close(fetcher.gate)
	time.Sleep(20 * time.Millisecond)

	r, e, _ := rec.counts()
	require.Equal(t, 0, r)
	require.Equal(t, 1, e)
	require.ErrorIs(t, rec.errs[0], types.ErrCancellation)
}

func TestCloseCancelsPendingRedirect(t *testing.T) {
	t.Parallel()

	ch, doc, bus, fetcher := newChannel(t, Options{RedirectDelay: 50 * time.Millisecond})
	fetcher.set("c1", "paid", "https://shop.example/thanks")
	rec := &recorder{}
	require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

	complete(bus, "c1")
	require.Eventually(t, func() bool {
		r, _, _ := rec.counts()
		return r == 1
	}, time.Second, 5*time.Millisecond)

	ch.Close()
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, doc.Navigations())
	require.ErrorIs(t, ch.Open("https://acs.example/b", "c2", (&recorder{}).delivery()), types.ErrCancellation)
}

func TestCloseWaitsForRefresh(t *testing.T) {
	t.Parallel()

	ch, doc, bus, fetcher := newChannel(t, Options{RedirectDelay: 10 * time.Millisecond})
	fetcher.gate = make(chan struct{})
	fetcher.set("c1", "paid", "https://shop.example/thanks")
	rec := &recorder{}
	require.NoError(t, ch.Open("https://acs.example/a", "c1", rec.delivery()))

	complete(bus, "c1")
	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls == 1
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		ch.Close()
		close(done)
	}()
	require.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 30*time.Millisecond, 5*time.Millisecond)

	close(fetcher.gate)
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	r, e, ev := rec.counts()
	require.Zero(t, r+e+ev)
	require.Empty(t, doc.Navigations())
	require.Nil(t, doc.ElementByID(OverlayID))
}
