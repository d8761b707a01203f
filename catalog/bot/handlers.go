package bot

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/catalogbot/catalog"
	"github.com/m3rciful/catalogbot/catalog/inquiry"
	"github.com/m3rciful/catalogbot/catalog/navigator"
	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/callbacks"
	"github.com/m3rciful/catalogbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/catalogbot/core/telegram/helpers"
	"github.com/m3rciful/catalogbot/core/telegram/keyboard"
	"github.com/m3rciful/catalogbot/core/telegram/middleware"
	"github.com/m3rciful/catalogbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const (
	textHelp = "*Catalog bot*\n\n" +
		"Browse products, services and courses with /catalog.\n" +
		"Tap an item to see its details and request a price.\n" +
		"/inquiry asks a general question, /cancel stops a request."
	textGone        = "This entry is no longer available."
	textUnknown     = "I did not get that. Use /catalog to browse or /help for hints."
	textNoFiles     = "Files are not accepted here."
	textUseButtons  = "Please confirm or cancel your request with the buttons above."
	textStale       = "This request is no longer active."
	textUnsupported = "Unsupported action"
	textSlowDown    = "Please wait a moment"
	textResend      = "That came in too fast. Please wait a moment and send it again."
	textAdminOnly   = "This command is for administrators."

	pageColumns = 2
)

type namedCommand struct {
	name string
	cmd  commands.Command
}

func (a *App) register() error {
	cmds := []namedCommand{
		{"/start", commands.Command{Handler: a.handleStart, Description: "Main menu"}},
		{"/catalog", commands.Command{Handler: a.handleCatalog, Description: "Browse the catalog", Aliases: []string{"menu"}}},
		{"/inquiry", commands.Command{Handler: a.handleInquiry, Description: "Ask a question"}},
		{"/cancel", commands.Command{Handler: a.handleCancel, Description: "Cancel the current request"}},
		{"/help", commands.Command{Handler: a.handleHelp, Description: "How to use the bot"}},
	}
	if a.cfg.Telegram.AdminID != 0 {
		cmds = append(cmds, namedCommand{"/stats", commands.Command{Handler: a.handleStats, Description: "Inquiry counters", AdminOnly: true}})
	}
	for _, c := range cmds {
		if err := a.reg.RegisterCommand(c.name, c.cmd); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	confirmOnly := middleware.State(a.store, []state.State{inquiry.StateConfirm}, middleware.StateOptions{OnSkip: a.staleConfirm})
	actions := map[callbacks.Type]tele.HandlerFunc{
		callbacks.MainMenu:        a.onMainMenu,
		callbacks.CategoryPage:    a.onPage,
		callbacks.Back:            a.onPage,
		callbacks.CategorySelect:  a.onCategory,
		callbacks.ProductSelect:   a.onItem(catalog.KindProduct),
		callbacks.ServiceSelect:   a.onItem(catalog.KindService),
		callbacks.EducationSelect: a.onItem(catalog.KindEducation),
		callbacks.InquiryStart:    a.onInquiryStart,
		callbacks.InquiryGeneral:  a.onInquiryGeneral,
		callbacks.ConfirmInquiry:  confirmOnly(a.onConfirm),
		callbacks.CancelInquiry:   confirmOnly(a.onCancel),
	}
	for _, t := range callbacks.Types() {
		h, ok := actions[t]
		if !ok {
			return fmt.Errorf("bot: no handler for action %s", t)
		}
		if err := a.reg.RegisterAction(t, h); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	for _, st := range []state.State{inquiry.StateName, inquiry.StatePhone, inquiry.StateDescription} {
		a.fsm.Handle(st, a.onFlowText)
	}
	a.fsm.Handle(inquiry.StateConfirm, a.onConfirmPending)

	a.reg.SetCallbackNotFound(a.UnknownCallback())
	a.reg.SetTextFallback(a.UnknownText())
	return nil
}

// Commands.

func (a *App) handleStart(c tele.Context) error {
	if s := c.Sender(); s != nil {
		a.store.Clear(s.ID)
	}
	return a.showMainMenu(c)
}

func (a *App) handleCatalog(c tele.Context) error {
	return a.showMainMenu(c)
}

func (a *App) handleInquiry(c tele.Context) error {
	s := c.Sender()
	if s == nil {
		return nil
	}
	r := a.flow.Start(tghelpers.BuildContext(c), s.ID, catalog.General())
	return a.reply(c, r, false)
}

func (a *App) handleCancel(c tele.Context) error {
	s := c.Sender()
	if s == nil {
		return nil
	}
	return a.reply(c, a.flow.Abort(tghelpers.BuildContext(c), s.ID), false)
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendMD(c, textHelp)
}

func (a *App) handleStats(c tele.Context) error {
	var sent, sendFailures uint64
	if a.dispatcher != nil {
		sent, sendFailures = a.dispatcher.SentCount(), a.dispatcher.ErrorCount()
	}
	text := fmt.Sprintf("Inquiries committed: %d\nCommit failures: %d\nNotify failures: %d\nMessages sent: %d\nSend failures: %d",
		a.flow.Committed(), a.flow.CommitFailures(), a.flow.NotifyFailures(), sent, sendFailures)
	return tghelpers.SendText(c, text)
}

func (a *App) adminReject(c tele.Context) error {
	return tghelpers.SendText(c, textAdminOnly)
}

// Callback actions. The router has already answered the callback query.

func (a *App) onMainMenu(c tele.Context) error {
	return a.showMainMenu(c)
}

func (a *App) onPage(c tele.Context) error {
	act, _ := callbacks.From(c)
	kind, ok := catalog.KindFromSlug(act.Str(callbacks.ParamKind))
	if !ok {
		return a.fail(c, "nav.browse", fmt.Errorf("%w: %q", navigator.ErrUnknownKind, act.Str(callbacks.ParamKind)))
	}
	page, err := a.nav.Browse(tghelpers.BuildContext(c), kind, act.ID(callbacks.ParamID))
	if err != nil {
		return a.fail(c, "nav.browse", err)
	}
	return a.showPage(c, page)
}

func (a *App) onCategory(c tele.Context) error {
	act, _ := callbacks.From(c)
	page, err := a.nav.Select(tghelpers.BuildContext(c), act.ID(callbacks.ParamID))
	if err != nil {
		return a.fail(c, "nav.select", err)
	}
	return a.showPage(c, page)
}

func (a *App) onItem(kind catalog.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		act, _ := callbacks.From(c)
		ctx := tghelpers.BuildContext(c)
		d, err := a.nav.ItemDetail(ctx, kind, act.ID(callbacks.ParamID))
		if err != nil {
			return a.fail(c, "nav.item", err)
		}
		card := Card{Text: d.Text, Markup: keyboard.InlineButtons(d.Buttons), Media: d.Item.Media}
		if err := a.deliverer.Deliver(ctx, c.Recipient(), card); err != nil {
			return a.fail(c, "nav.item.deliver", err)
		}
		return nil
	}
}

func (a *App) onInquiryStart(c tele.Context) error {
	s := c.Sender()
	if s == nil {
		return nil
	}
	act, _ := callbacks.From(c)
	kind, _ := catalog.KindFromSlug(act.Str(callbacks.ParamItemType))
	subject := catalog.SubjectFor(kind, act.ID(callbacks.ParamItemID))
	return a.reply(c, a.flow.Start(tghelpers.BuildContext(c), s.ID, subject), false)
}

func (a *App) onInquiryGeneral(c tele.Context) error {
	s := c.Sender()
	if s == nil {
		return nil
	}
	return a.reply(c, a.flow.Start(tghelpers.BuildContext(c), s.ID, catalog.General()), false)
}

func (a *App) onConfirm(c tele.Context) error {
	return a.reply(c, a.flow.Confirm(tghelpers.BuildContext(c), c.Sender().ID), true)
}

func (a *App) onCancel(c tele.Context) error {
	return a.reply(c, a.flow.Cancel(tghelpers.BuildContext(c), c.Sender().ID), true)
}

func (a *App) staleConfirm(c tele.Context) error {
	return tghelpers.SendText(c, textStale)
}

// Conversation steps.

func (a *App) onFlowText(c tele.Context) error {
	s := c.Sender()
	if s == nil {
		return nil
	}
	r := a.flow.HandleText(tghelpers.BuildContext(c), s.ID, c.Text())
	if !r.Handled {
		return nil
	}
	return a.reply(c, r, false)
}

func (a *App) onConfirmPending(c tele.Context) error {
	return tghelpers.SendText(c, textUseButtons)
}

// Fallbacks.

// UnknownText answers text that is neither a command nor part of a flow.
func (a *App) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.SendText(c, textUnknown) }
}

// UnknownDocument answers files sent outside a flow.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.SendText(c, textNoFiles) }
}

// UnknownCallback answers tokens that do not decode or have no handler.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: textUnsupported})
	}
}

func (a *App) rateLimited(c tele.Context) error {
	switch {
	case c.Callback() != nil:
		return c.Respond(&tele.CallbackResponse{Text: textSlowDown})
	case c.Message() != nil:
		return tghelpers.SendText(c, textResend)
	}
	return nil
}

// Rendering.

func (a *App) showMainMenu(c tele.Context) error {
	page, err := a.nav.MainMenu()
	if err != nil {
		return a.fail(c, "nav.menu", err)
	}
	return a.show(c, page.Text, keyboard.InlineButtons(page.Buttons))
}

func (a *App) showPage(c tele.Context, page navigator.Page) error {
	return a.show(c, page.Text, keyboard.WithFooter(page.Buttons, pageColumns))
}

func (a *App) reply(c tele.Context, r inquiry.Reply, edit bool) error {
	if !r.Handled || r.Text == "" {
		return nil
	}
	var rm *tele.ReplyMarkup
	if len(r.Buttons) > 0 {
		rm = keyboard.InlineButtonsNPerRow(r.Buttons, 2)
	}
	if edit {
		return a.show(c, r.Text, rm)
	}
	return tghelpers.SendText(c, r.Text, &tele.SendOptions{ReplyMarkup: rm})
}

// show edits the message behind a callback when it is a plain text message
// and sends a new one otherwise. Texts are sent without a parse mode.
func (a *App) show(c tele.Context, text string, rm *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: rm}
	if msg := c.Message(); c.Callback() != nil && msg != nil && msg.Text != "" && msg.Photo == nil && msg.Video == nil {
		err := c.Edit(text, opts)
		if err == nil || errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		logger.Debug(tghelpers.BuildContext(c), "tg", "message.edit",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	return tghelpers.SendText(c, text, opts)
}

// fail logs err and sends the user-facing text for it: missing rows are
// reported as gone, anything else gets the generic apology.
func (a *App) fail(c tele.Context, event string, err error) error {
	ctx := tghelpers.BuildContext(c)
	text := catalog.ApologyText
	level := slog.LevelError
	status := "fail"
	if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrKindMismatch) {
		text, level, status = textGone, slog.LevelWarn, "skip"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	}
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		attrs = append(attrs, slog.String("err_code", coder.Code()))
	}
	logger.Event(ctx, "service.catalog", level, event, attrs...)
	return tghelpers.SendText(c, text)
}
