// Package inquiry drives the multi-step price inquiry conversation:
// name, phone, description, then confirm or cancel.
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m3rciful/catalogbot/catalog"
	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/callbacks"
	"github.com/m3rciful/catalogbot/core/telegram/keyboard"
	"github.com/m3rciful/catalogbot/core/telegram/state"
)

const component = "service.inquiry"

// Flow steps. Idle is state.StateIdle.
const (
	StateName        state.State = "inquiry_name"
	StatePhone       state.State = "inquiry_phone"
	StateDescription state.State = "inquiry_description"
	StateConfirm     state.State = "inquiry_confirm"
)

// Data bag keys.
const (
	KeySubjectKind = "subject_kind"
	KeySubjectID   = "subject_id"
	KeyItemName    = "item_name"
	KeyName        = "name"
	KeyPhone       = "phone"
	KeyDescription = "description"
)

const (
	textAskName        = "Please enter your name:"
	textAskPhone       = "Thanks, %s. Now send your phone number (digits only, at least 10):"
	textBadPhone       = "That does not look like a phone number. Please send digits only, at least 10 of them:"
	textAskDescription = "Briefly describe what you need:"
	textEmptyInput     = "Please send a text message."
	textThanks         = "Thank you! We will contact you shortly."
	textCancelled      = "Request cancelled."
	textNothing        = "There is nothing to cancel."
	confirmText        = "✅ Confirm"
	cancelText         = "❌ Cancel"
	minPhoneDigits     = 10
)

// ErrInvalidPhone marks input rejected by the phone check. It is answered
// with a re-prompt and never leaves the controller.
var ErrInvalidPhone = errors.New("inquiry: invalid phone number")

// Items resolves the item an inquiry refers to.
type Items interface {
	Item(ctx context.Context, kind catalog.Kind, id int64) (catalog.Item, error)
}

// Inquiries persists committed inquiries. Implementations set inq.ID.
type Inquiries interface {
	CreateInquiry(ctx context.Context, inq *catalog.Inquiry) error
}

// Notifier tells the back office about a new inquiry.
type Notifier interface {
	NotifyInquiry(ctx context.Context, inq catalog.Inquiry, itemName string) error
}

// Reply is what the transport should show the user. Handled is false when
// the event did not match the user's current step and nothing changed.
type Reply struct {
	Text    string
	Buttons []keyboard.InlineBtn
	Handled bool
}

// Options wires the controller's collaborators. Notifier and Now are optional.
type Options struct {
	Store     state.Store
	Items     Items
	Inquiries Inquiries
	Notifier  Notifier
	Now       func() time.Time
}

// Controller implements the inquiry FSM on top of a state.Store.
type Controller struct {
	store     state.Store
	items     Items
	inquiries Inquiries
	notifier  Notifier
	now       func() time.Time

	committed      atomic.Uint64
	commitFailures atomic.Uint64
	notifyFailures atomic.Uint64
}

// New constructs a Controller.
func New(opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store:     opts.Store,
		items:     opts.Items,
		inquiries: opts.Inquiries,
		notifier:  opts.Notifier,
		now:       now,
	}
}

// Active reports whether st belongs to this flow.
func Active(st state.State) bool {
	switch st {
	case StateName, StatePhone, StateDescription, StateConfirm:
		return true
	}
	return false
}

// Start begins a new inquiry. An unfinished one is discarded.
func (c *Controller) Start(ctx context.Context, userID int64, subject catalog.Subject) Reply {
	c.store.Clear(userID)

	data := map[string]string{KeySubjectKind: string(catalog.SubjectGeneral)}
	text := textAskName
	if kind, ok := subject.ItemKind(); ok {
		name, err := c.itemName(ctx, kind, subject.ItemID)
		if errors.Is(err, catalog.ErrNotFound) {
			// Stale or forged button: keep the lead as a general one.
			subject = catalog.General()
		} else {
			data[KeySubjectKind] = string(subject.Kind)
			data[KeySubjectID] = strconv.FormatInt(subject.ItemID, 10)
			if name != "" {
				data[KeyItemName] = name
				text = fmt.Sprintf("Price request for %q.\n%s", name, textAskName)
			}
		}
	}
	c.store.UpdateData(userID, data)
	c.store.SetState(userID, StateName)

	logger.Info(ctx, component, "inquiry.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("subject", string(subject.Kind)),
		slog.Int64("item_id", subject.ItemID),
	)
	return Reply{Text: text, Handled: true}
}

// HandleText feeds a free-text message into the current step.
func (c *Controller) HandleText(ctx context.Context, userID int64, text string) Reply {
	current := c.store.GetState(userID)
	input := strings.TrimSpace(text)

	switch current {
	case StateName:
		if input == "" {
			return Reply{Text: textEmptyInput, Handled: true}
		}
		c.store.UpdateData(userID, map[string]string{KeyName: input})
		c.store.SetState(userID, StatePhone)
		return Reply{Text: fmt.Sprintf(textAskPhone, input), Handled: true}

	case StatePhone:
		phone, err := NormalizePhone(input)
		if err != nil {
			logger.Debug(ctx, component, "inquiry.phone.invalid",
				slog.String("status", "retry"),
				slog.Int64("user_id", userID),
			)
			return Reply{Text: textBadPhone, Handled: true}
		}
		c.store.UpdateData(userID, map[string]string{KeyPhone: phone})
		c.store.SetState(userID, StateDescription)
		return Reply{Text: textAskDescription, Handled: true}

	case StateDescription:
		if input == "" {
			return Reply{Text: textEmptyInput, Handled: true}
		}
		c.store.UpdateData(userID, map[string]string{KeyDescription: input})
		c.store.SetState(userID, StateConfirm)
		buttons, err := confirmButtons()
		if err != nil {
			logger.Error(ctx, component, "inquiry.buttons",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			c.store.Clear(userID)
			return Reply{Text: catalog.ApologyText, Handled: true}
		}
		return Reply{Text: Summary(c.store.GetData(userID)), Buttons: buttons, Handled: true}
	}

	return Reply{}
}

// Confirm commits the collected inquiry. Only valid on the confirm step.
// The state is cleared whether or not the write succeeds; it is not retried.
func (c *Controller) Confirm(ctx context.Context, userID int64) Reply {
	if c.store.GetState(userID) != StateConfirm {
		return Reply{}
	}
	data := c.store.GetData(userID)
	c.store.Clear(userID)

	inq := catalog.Inquiry{
		UserID:      userID,
		Name:        data[KeyName],
		Phone:       data[KeyPhone],
		Description: data[KeyDescription],
		Subject:     subjectFromData(data),
		Status:      catalog.InquiryNew,
		CreatedAt:   c.now().UTC(),
	}

	if c.inquiries == nil {
		c.commitFailures.Add(1)
		logger.Error(ctx, component, "inquiry.commit",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", "no inquiry repository configured"),
		)
		return Reply{Text: catalog.ApologyText, Handled: true}
	}
	if err := c.inquiries.CreateInquiry(ctx, &inq); err != nil {
		c.commitFailures.Add(1)
		logger.Error(ctx, component, "inquiry.commit",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
		return Reply{Text: catalog.ApologyText, Handled: true}
	}
	c.committed.Add(1)
	logger.Info(ctx, component, "inquiry.commit",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Int64("inquiry_id", inq.ID),
		slog.String("subject", string(inq.Subject.Kind)),
		slog.Int64("item_id", inq.Subject.ItemID),
	)

	c.notify(ctx, inq, data[KeyItemName])
	return Reply{Text: textThanks, Handled: true}
}

// Cancel drops the collected data. Only valid on the confirm step.
func (c *Controller) Cancel(ctx context.Context, userID int64) Reply {
	if c.store.GetState(userID) != StateConfirm {
		return Reply{}
	}
	c.store.Clear(userID)
	logger.Info(ctx, component, "inquiry.cancel",
		slog.String("status", "cancelled"),
		slog.Int64("user_id", userID),
	)
	return Reply{Text: textCancelled, Handled: true}
}

// Abort clears any step of the flow; it backs the /cancel command.
func (c *Controller) Abort(ctx context.Context, userID int64) Reply {
	current := c.store.GetState(userID)
	if !Active(current) {
		return Reply{Text: textNothing, Handled: true}
	}
	c.store.Clear(userID)
	logger.Info(ctx, component, "inquiry.abort",
		slog.String("status", "cancelled"),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)
	return Reply{Text: textCancelled, Handled: true}
}

// Committed returns the number of inquiries persisted.
func (c *Controller) Committed() uint64 { return c.committed.Load() }

// CommitFailures returns the number of failed inquiry writes.
func (c *Controller) CommitFailures() uint64 { return c.commitFailures.Load() }

// NotifyFailures returns the number of admin notifications that failed.
func (c *Controller) NotifyFailures() uint64 { return c.notifyFailures.Load() }

func (c *Controller) notify(ctx context.Context, inq catalog.Inquiry, itemName string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyInquiry(ctx, inq, itemName); err != nil {
		c.notifyFailures.Add(1)
		logger.Warn(ctx, component, "inquiry.notify",
			slog.String("status", "fail"),
			slog.Int64("inquiry_id", inq.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

// itemName looks the subject item up. Errors other than catalog.ErrNotFound
// leave the subject in place with no name.
func (c *Controller) itemName(ctx context.Context, kind catalog.Kind, id int64) (string, error) {
	if c.items == nil {
		return "", nil
	}
	it, err := c.items.Item(ctx, kind, id)
	if err != nil {
		logger.Warn(ctx, component, "inquiry.item.lookup",
			slog.String("status", "fail"),
			slog.String("kind", string(kind)),
			slog.Int64("item_id", id),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return "", err
	}
	return it.Name, nil
}

// ValidatePhone reports ErrInvalidPhone for input NormalizePhone rejects.
func ValidatePhone(input string) error {
	_, err := NormalizePhone(input)
	return err
}

// NormalizePhone trims surrounding whitespace and accepts digits-only
// numbers of at least ten digits.
func NormalizePhone(input string) (string, error) {
	s := strings.TrimSpace(input)
	if len(s) < minPhoneDigits {
		return "", ErrInvalidPhone
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}
	return s, nil
}

// Summary renders the confirmation text from a data bag.
func Summary(data map[string]string) string {
	var b strings.Builder
	b.WriteString("Please confirm your request:\n")
	fmt.Fprintf(&b, "Name: %s\n", data[KeyName])
	fmt.Fprintf(&b, "Phone: %s\n", data[KeyPhone])
	if name := data[KeyItemName]; name != "" {
		fmt.Fprintf(&b, "Item: %s\n", name)
	}
	fmt.Fprintf(&b, "Details: %s", data[KeyDescription])
	return b.String()
}

func confirmButtons() ([]keyboard.InlineBtn, error) {
	confirm, err := callbacks.Write(callbacks.ConfirmInquiry, nil)
	if err != nil {
		return nil, err
	}
	cancel, err := callbacks.Write(callbacks.CancelInquiry, nil)
	if err != nil {
		return nil, err
	}
	return []keyboard.InlineBtn{
		{Text: confirmText, Data: confirm},
		{Text: cancelText, Data: cancel},
	}, nil
}

func subjectFromData(data map[string]string) catalog.Subject {
	id, err := strconv.ParseInt(data[KeySubjectID], 10, 64)
	if err != nil || id <= 0 {
		return catalog.General()
	}
	switch catalog.SubjectKind(data[KeySubjectKind]) {
	case catalog.SubjectProduct:
		return catalog.ProductSubject(id)
	case catalog.SubjectService:
		return catalog.ServiceSubject(id)
	}
	return catalog.General()
}

func errorCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return ""
}
