package inquiry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/catalogbot/catalog"
	"github.com/m3rciful/catalogbot/core/telegram/state"
)

type fakeItems struct {
	items map[int64]catalog.Item
	err   error
}

func (f fakeItems) Item(_ context.Context, kind catalog.Kind, id int64) (catalog.Item, error) {
	if f.err != nil {
		return catalog.Item{}, f.err
	}
	it, ok := f.items[id]
	if !ok || it.Kind != kind {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return it, nil
}

type fakeInquiries struct {
	saved []catalog.Inquiry
	err   error
}

func (f *fakeInquiries) CreateInquiry(_ context.Context, inq *catalog.Inquiry) error {
	if f.err != nil {
		return f.err
	}
	inq.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, *inq)
	return nil
}

type fakeNotifier struct {
	calls []string
	err   error
}

func (f *fakeNotifier) NotifyInquiry(_ context.Context, inq catalog.Inquiry, itemName string) error {
	f.calls = append(f.calls, inq.Name+"|"+itemName)
	return f.err
}

type harness struct {
	ctrl      *Controller
	store     state.Store
	inquiries *fakeInquiries
	notifier  *fakeNotifier
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newHarness() harness {
	store := state.NewMemoryStore()
	inqs := &fakeInquiries{}
	notifier := &fakeNotifier{}
	ctrl := New(Options{
		Store: store,
		Items: fakeItems{items: map[int64]catalog.Item{
			5: {ID: 5, Kind: catalog.KindProduct, Name: "Drill"},
			9: {ID: 9, Kind: catalog.KindService, Name: "Install"},
		}},
		Inquiries: inqs,
		Notifier:  notifier,
		Now:       func() time.Time { return fixedNow },
	})
	return harness{ctrl: ctrl, store: store, inquiries: inqs, notifier: notifier}
}

func (h harness) fillUntilConfirm(t *testing.T, userID int64, subject catalog.Subject) Reply {
	t.Helper()
	ctx := context.Background()
	h.ctrl.Start(ctx, userID, subject)
	if r := h.ctrl.HandleText(ctx, userID, "Ali"); !r.Handled {
		t.Fatal("name step not handled")
	}
	if r := h.ctrl.HandleText(ctx, userID, "09123456789"); !r.Handled {
		t.Fatal("phone step not handled")
	}
	r := h.ctrl.HandleText(ctx, userID, "need a quote")
	if !r.Handled {
		t.Fatal("description step not handled")
	}
	if got := h.store.GetState(userID); got != StateConfirm {
		t.Fatalf("state = %q, want %q", got, StateConfirm)
	}
	return r
}

func TestFullProductFlowCommitsOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	r := h.fillUntilConfirm(t, 42, catalog.ProductSubject(5))
	if len(r.Buttons) != 2 || r.Buttons[0].Data != "confirm_inquiry" || r.Buttons[1].Data != "cancel_inquiry" {
		t.Fatalf("unexpected confirm buttons %#v", r.Buttons)
	}
	for _, want := range []string{"Ali", "09123456789", "need a quote", "Drill"} {
		if !strings.Contains(r.Text, want) {
			t.Fatalf("summary %q misses %q", r.Text, want)
		}
	}

	done := h.ctrl.Confirm(ctx, 42)
	if !done.Handled || done.Text != textThanks {
		t.Fatalf("Confirm reply = %#v", done)
	}
	if len(h.inquiries.saved) != 1 {
		t.Fatalf("saved %d inquiries, want 1", len(h.inquiries.saved))
	}
	got := h.inquiries.saved[0]
	if got.UserID != 42 || got.Name != "Ali" || got.Phone != "09123456789" || got.Description != "need a quote" {
		t.Fatalf("unexpected inquiry %#v", got)
	}
	if got.Subject != catalog.ProductSubject(5) || got.Status != catalog.InquiryNew || !got.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected subject/status/time %#v", got)
	}
	if h.store.GetState(42) != state.StateIdle || len(h.store.GetData(42)) != 0 {
		t.Fatal("state must be cleared after commit")
	}
	if len(h.notifier.calls) != 1 || h.notifier.calls[0] != "Ali|Drill" {
		t.Fatalf("notifier calls = %v", h.notifier.calls)
	}

	if again := h.ctrl.Confirm(ctx, 42); again.Handled {
		t.Fatal("second Confirm must be a no-op")
	}
	if len(h.inquiries.saved) != 1 || h.ctrl.Committed() != 1 {
		t.Fatal("inquiry committed twice")
	}
}

func TestGeneralInquiryHasNoItem(t *testing.T) {
	h := newHarness()
	h.fillUntilConfirm(t, 1, catalog.General())
	h.ctrl.Confirm(context.Background(), 1)
	if len(h.inquiries.saved) != 1 || h.inquiries.saved[0].Subject.HasItem() {
		t.Fatalf("unexpected saved %#v", h.inquiries.saved)
	}
}

func TestServiceSubjectRecorded(t *testing.T) {
	h := newHarness()
	h.fillUntilConfirm(t, 1, catalog.ServiceSubject(9))
	h.ctrl.Confirm(context.Background(), 1)
	if h.inquiries.saved[0].Subject != catalog.ServiceSubject(9) {
		t.Fatalf("subject = %#v", h.inquiries.saved[0].Subject)
	}
}

func TestInvalidPhoneStaysOnPhoneStep(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.ctrl.Start(ctx, 3, catalog.General())
	h.ctrl.HandleText(ctx, 3, "Ali")

	for _, bad := range []string{"abc", "123", "0912 345 678", "+989123456789", ""} {
		r := h.ctrl.HandleText(ctx, 3, bad)
		if !r.Handled || r.Text != textBadPhone {
			t.Fatalf("%q: reply %#v", bad, r)
		}
		if h.store.GetState(3) != StatePhone {
			t.Fatalf("%q: state moved to %q", bad, h.store.GetState(3))
		}
		if _, ok := h.store.GetData(3)[KeyPhone]; ok {
			t.Fatalf("%q: invalid phone stored", bad)
		}
	}

	h.ctrl.HandleText(ctx, 3, "  09123456789  ")
	if h.store.GetState(3) != StateDescription || h.store.GetData(3)[KeyPhone] != "09123456789" {
		t.Fatal("valid phone must advance and be stored trimmed")
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]bool{
		"0912345678":   true,
		" 0912345678 ": true,
		"091234567":    false,
		"09123a45678":  false,
		"abc":          false,
	}
	for in, ok := range cases {
		_, err := NormalizePhone(in)
		if ok && err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if !ok && !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("%q: err = %v, want ErrInvalidPhone", in, err)
		}
		if (ValidatePhone(in) == nil) != ok {
			t.Fatalf("ValidatePhone(%q) disagrees with NormalizePhone", in)
		}
	}
}

func TestPersistenceFailureApologisesAndClears(t *testing.T) {
	h := newHarness()
	h.inquiries.err = catalog.WrapRepo("create inquiry", errors.New("disk full"))
	h.fillUntilConfirm(t, 8, catalog.General())

	r := h.ctrl.Confirm(context.Background(), 8)
	if !r.Handled || r.Text != catalog.ApologyText {
		t.Fatalf("reply = %#v, want apology", r)
	}
	if h.store.GetState(8) != state.StateIdle {
		t.Fatal("state must be cleared after failed commit")
	}
	if len(h.notifier.calls) != 0 {
		t.Fatal("failed commit must not notify")
	}
	if h.ctrl.CommitFailures() != 1 || h.ctrl.Committed() != 0 {
		t.Fatal("counters not updated")
	}
}

func TestNotifyFailureDoesNotUndoCommit(t *testing.T) {
	h := newHarness()
	h.notifier.err = errors.New("chat not found")
	h.fillUntilConfirm(t, 2, catalog.General())

	r := h.ctrl.Confirm(context.Background(), 2)
	if r.Text != textThanks {
		t.Fatalf("reply = %q, want thanks", r.Text)
	}
	if len(h.inquiries.saved) != 1 || h.ctrl.NotifyFailures() != 1 {
		t.Fatal("commit must stand and failure be counted")
	}
}

func TestCancelOnConfirmStep(t *testing.T) {
	h := newHarness()
	h.fillUntilConfirm(t, 4, catalog.General())

	r := h.ctrl.Cancel(context.Background(), 4)
	if !r.Handled || r.Text != textCancelled {
		t.Fatalf("reply = %#v", r)
	}
	if len(h.inquiries.saved) != 0 || h.store.InProgress(4) {
		t.Fatal("cancel must persist nothing and clear state")
	}
}

func TestConfirmAndCancelOutsideConfirmAreNoops(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if h.ctrl.Confirm(ctx, 6).Handled || h.ctrl.Cancel(ctx, 6).Handled {
		t.Fatal("idle user: confirm/cancel must be ignored")
	}

	h.ctrl.Start(ctx, 6, catalog.General())
	h.ctrl.HandleText(ctx, 6, "Ali")
	if h.ctrl.Confirm(ctx, 6).Handled || h.ctrl.Cancel(ctx, 6).Handled {
		t.Fatal("phone step: confirm/cancel must be ignored")
	}
	if h.store.GetState(6) != StatePhone || h.store.GetData(6)[KeyName] != "Ali" {
		t.Fatal("ignored events must leave the session untouched")
	}
	if len(h.inquiries.saved) != 0 {
		t.Fatal("nothing should be saved")
	}
}

func TestTextOnConfirmStepIgnored(t *testing.T) {
	h := newHarness()
	h.fillUntilConfirm(t, 7, catalog.General())
	if r := h.ctrl.HandleText(context.Background(), 7, "hello"); r.Handled {
		t.Fatal("text on confirm step must not be handled")
	}
	if h.store.GetState(7) != StateConfirm {
		t.Fatal("state changed")
	}
}

func TestTextWhenIdleIgnored(t *testing.T) {
	h := newHarness()
	if r := h.ctrl.HandleText(context.Background(), 11, "hi"); r.Handled {
		t.Fatal("idle text must not be handled")
	}
}

func TestStartDiscardsPreviousDraft(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.ctrl.Start(ctx, 5, catalog.ProductSubject(5))
	h.ctrl.HandleText(ctx, 5, "Old")

	h.ctrl.Start(ctx, 5, catalog.General())
	data := h.store.GetData(5)
	if h.store.GetState(5) != StateName || data[KeyName] != "" || data[KeyItemName] != "" {
		t.Fatalf("restart kept stale data %#v", data)
	}
}

func TestStartWithMissingItemFallsBack(t *testing.T) {
	h := newHarness()
	r := h.ctrl.Start(context.Background(), 5, catalog.ProductSubject(404))
	if r.Text != textAskName {
		t.Fatalf("text = %q", r.Text)
	}
	data := h.store.GetData(5)
	if data[KeySubjectID] != "" || data[KeySubjectKind] != string(catalog.SubjectGeneral) {
		t.Fatalf("missing item must become a general inquiry, data = %#v", data)
	}

	h.ctrl.HandleText(context.Background(), 5, "Ali")
	h.ctrl.HandleText(context.Background(), 5, "09123456789")
	h.ctrl.HandleText(context.Background(), 5, "need a quote")
	h.ctrl.Confirm(context.Background(), 5)
	if len(h.inquiries.saved) != 1 {
		t.Fatalf("saved %d inquiries, want 1", len(h.inquiries.saved))
	}
	if got := h.inquiries.saved[0].Subject; got.HasItem() {
		t.Fatalf("subject = %#v, want general", got)
	}
}

func TestStartKeepsSubjectOnLookupError(t *testing.T) {
	store := state.NewMemoryStore()
	ctrl := New(Options{
		Store:     store,
		Items:     fakeItems{err: &catalog.RepositoryError{Op: "item", Err: errors.New("conn refused")}},
		Inquiries: &fakeInquiries{},
	})
	ctrl.Start(context.Background(), 5, catalog.ServiceSubject(9))
	data := store.GetData(5)
	if data[KeySubjectID] != "9" || data[KeySubjectKind] != string(catalog.SubjectService) {
		t.Fatalf("transient lookup error dropped the subject, data = %#v", data)
	}
}

func TestAbortAnyStep(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if r := h.ctrl.Abort(ctx, 10); r.Text != textNothing {
		t.Fatalf("idle abort = %q", r.Text)
	}
	h.ctrl.Start(ctx, 10, catalog.General())
	h.ctrl.HandleText(ctx, 10, "Ali")
	if r := h.ctrl.Abort(ctx, 10); r.Text != textCancelled {
		t.Fatalf("abort = %q", r.Text)
	}
	if h.store.InProgress(10) {
		t.Fatal("abort must clear state")
	}
}

func TestEmptyNameReprompts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.ctrl.Start(ctx, 12, catalog.General())
	if r := h.ctrl.HandleText(ctx, 12, "   "); r.Text != textEmptyInput {
		t.Fatalf("text = %q", r.Text)
	}
	if h.store.GetState(12) != StateName {
		t.Fatal("blank name must not advance")
	}
}
