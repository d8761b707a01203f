package middleware

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeCtx struct {
	tele.Context

	user   *tele.User
	upd    tele.Update
	values map[string]any
	sent   int
}

func newCtx(userID int64, upd tele.Update) *fakeCtx {
	c := &fakeCtx{upd: upd, values: map[string]any{}}
	if userID != 0 {
		c.user = &tele.User{ID: userID}
	}
	return c
}

func (f *fakeCtx) Sender() *tele.User     { return f.user }
func (f *fakeCtx) Chat() *tele.Chat       { return nil }
func (f *fakeCtx) Update() tele.Update    { return f.upd }
func (f *fakeCtx) Text() string           { return "" }
func (f *fakeCtx) Get(key string) any     { return f.values[key] }
func (f *fakeCtx) Set(key string, v any)  { f.values[key] = v }
func (f *fakeCtx) Send(any, ...any) error { f.sent++; return nil }
func (f *fakeCtx) Edit(any, ...any) error { return errors.New("message can't be edited") }

func TestThrottleAllow(t *testing.T) {
	now := time.Unix(1000, 0)
	th := &throttle{interval: time.Second, now: func() time.Time { return now }, last: map[int64]time.Time{}}

	if !th.allow(1) {
		t.Fatal("first update should pass")
	}
	if th.allow(1) {
		t.Fatal("second update inside the interval should be dropped")
	}
	if !th.allow(2) {
		t.Fatal("other senders are independent")
	}
	now = now.Add(time.Second)
	if !th.allow(1) {
		t.Fatal("update after the interval should pass")
	}
}

func TestThrottlePrunesStaleSenders(t *testing.T) {
	now := time.Unix(1000, 0)
	th := &throttle{interval: time.Second, now: func() time.Time { return now }, last: map[int64]time.Time{}}
	for id := int64(1); id <= pruneAt; id++ {
		th.allow(id)
	}
	now = now.Add(2 * time.Second)
	th.allow(pruneAt + 1)
	if len(th.last) != 1 {
		t.Fatalf("tracked senders = %d, want 1", len(th.last))
	}
}

func TestRateLimitMiddlewareExcludesKinds(t *testing.T) {
	var calls, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { calls++; return nil })

	msg := tele.Update{Message: &tele.Message{Text: "hi"}}
	cb := tele.Update{Callback: &tele.Callback{Data: "x"}}
	for _, upd := range []tele.Update{msg, msg, cb, cb} {
		if err := h(newCtx(5, upd)); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if calls != 3 || limited != 1 {
		t.Fatalf("calls = %d, limited = %d", calls, limited)
	}
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newCtx(1, tele.Update{ID: 3}))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	var passed, rejected int
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID:  9,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	h := mw(func(tele.Context) error { passed++; return nil })

	for _, id := range []int64{9, 8, 0} {
		_ = h(newCtx(id, tele.Update{}))
	}
	if passed != 1 || rejected != 2 {
		t.Fatalf("passed = %d, rejected = %d", passed, rejected)
	}

	open := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { passed++; return nil })
	_ = open(newCtx(8, tele.Update{}))
	if passed != 2 {
		t.Fatal("zero admin id should let everyone through")
	}
}

func TestMessageMetricsCountsReplies(t *testing.T) {
	c := newCtx(1, tele.Update{})
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("plain")
		_ = c.Send("menu", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
		_ = c.Edit("failed edit", &tele.ReplyMarkup{})
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := GetCounters(c)
	if msgs != 2 || !kb || c.sent != 2 {
		t.Fatalf("messages = %d, kb = %v, sent = %d", msgs, kb, c.sent)
	}

	if msgs, kb := GetCounters(newCtx(1, tele.Update{})); msgs != 0 || kb {
		t.Fatalf("uninstrumented counters = %d, %v", msgs, kb)
	}
}

func TestSerializeSameSenderNeverOverlaps(t *testing.T) {
	var active, peak atomic.Int32
	h := SerializeMiddleware()(func(tele.Context) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h(newCtx(1, tele.Update{Callback: &tele.Callback{}}))
		}()
	}
	wg.Wait()
	if got := peak.Load(); got != 1 {
		t.Fatalf("peak concurrent handlers for one sender = %d, want 1", got)
	}
}

func TestSerializeOtherSendersRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	h := SerializeMiddleware()(func(c tele.Context) error {
		if c.Sender().ID == 1 {
			<-release
			return nil
		}
		close(release)
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = h(newCtx(1, tele.Update{Message: &tele.Message{}}))
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() { _ = h(newCtx(2, tele.Update{Message: &tele.Message{}})) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender 1 blocked sender 2")
	}
}

func TestSenderLocksReleaseEntries(t *testing.T) {
	s := &senderLocks{locks: make(map[int64]*senderLock)}
	a := s.acquire(1)
	b := s.acquire(2)
	if s.size() != 2 {
		t.Fatalf("size = %d, want 2", s.size())
	}
	s.release(1, a)
	s.release(2, b)
	if s.size() != 0 {
		t.Fatalf("size after release = %d, want 0", s.size())
	}
}
