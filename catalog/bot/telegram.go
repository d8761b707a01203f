package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/catalogbot/catalog"
	"github.com/m3rciful/catalogbot/catalog/media"
	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Telegram limits for media groups and captions.
const (
	maxAlbum   = 10
	maxCaption = 1024
)

var errUnbound = errors.New("bot: telegram api not bound yet")

// api is the part of *tele.Bot the adapters use.
type api interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error)
	FileByID(fileID string) (tele.File, error)
}

// fileChannel is the media.Channel backed by the Bot API: probing is a
// getFile call, uploading is a silent send to a storage chat.
type fileChannel struct {
	api  api
	chat tele.Recipient
}

func (f *fileChannel) Probe(_ context.Context, handle string) error {
	if f.api == nil {
		return errUnbound
	}
	_, err := f.api.FileByID(handle)
	return err
}

func (f *fileChannel) Upload(_ context.Context, kind catalog.MediaKind, path string) (string, error) {
	if f.api == nil {
		return "", errUnbound
	}
	var what interface{}
	switch kind {
	case catalog.MediaVideo:
		what = &tele.Video{File: tele.FromDisk(path)}
	default:
		what = &tele.Photo{File: tele.FromDisk(path)}
	}
	msg, err := f.api.Send(f.chat, what, tele.Silent)
	if err != nil {
		return "", err
	}
	switch {
	case msg == nil:
		return "", errors.New("upload returned no message")
	case msg.Video != nil:
		return msg.Video.FileID, nil
	case msg.Photo != nil:
		return msg.Photo.FileID, nil
	}
	return "", errors.New("upload returned no file")
}

// notifier announces committed inquiries to the back-office chat through
// the outbound dispatcher.
type notifier struct {
	api        api
	chat       tele.Recipient
	dispatcher *sender.Dispatcher
}

func (n *notifier) NotifyInquiry(ctx context.Context, inq catalog.Inquiry, itemName string) error {
	if n.api == nil {
		return errUnbound
	}
	text := NotificationText(inq, itemName)
	send := func() error {
		_, err := n.api.Send(n.chat, text, tele.NoPreview)
		return err
	}
	if n.dispatcher == nil {
		return send()
	}
	err := n.dispatcher.Enqueue(ctx, "notify.inquiry", "sendMessage", send)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "notify.inquiry"),
			slog.String("err", err.Error()),
		)
		return send()
	}
	return err
}

// NotificationText is the plain-text message the back office receives.
func NotificationText(inq catalog.Inquiry, itemName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New inquiry #%d\n", inq.ID)
	switch {
	case inq.Subject.HasItem() && itemName != "":
		fmt.Fprintf(&b, "%s: %s (#%d)\n", inq.Subject.Kind, itemName, inq.Subject.ItemID)
	case inq.Subject.HasItem():
		fmt.Fprintf(&b, "%s #%d\n", inq.Subject.Kind, inq.Subject.ItemID)
	default:
		b.WriteString("General question\n")
	}
	fmt.Fprintf(&b, "Name: %s\n", inq.Name)
	fmt.Fprintf(&b, "Phone: %s\n", inq.Phone)
	fmt.Fprintf(&b, "Details: %s\n", inq.Description)
	fmt.Fprintf(&b, "User: %d", inq.UserID)
	return b.String()
}

// Card is an item card ready to be delivered.
type Card struct {
	Text   string
	Markup *tele.ReplyMarkup
	Media  []catalog.MediaRecord
}

// Deliverer sends item cards: resolved media first, then the text with the
// inline keyboard. Media sends are synchronous so the order holds.
type Deliverer struct {
	api      api
	resolver *media.Resolver
}

// Deliver sends card to the recipient.
func (d *Deliverer) Deliver(ctx context.Context, to tele.Recipient, card Card) error {
	if d.api == nil {
		return errUnbound
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: card.Markup}

	assets := d.assets(ctx, card.Media)
	switch {
	case len(assets) == 0:
		_, err := d.api.Send(to, card.Text, opts)
		return err
	case len(assets) == 1 && utf8.RuneCountInString(card.Text) <= maxCaption:
		what := inputFor(assets[0], card.Text)
		_, err := d.api.Send(to, what, opts)
		if err == nil {
			return nil
		}
		logger.Warn(ctx, "tg", "card.media",
			slog.String("status", "fail"),
			slog.Int64("media_id", assets[0].MediaID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		_, err = d.api.Send(to, card.Text, opts)
		return err
	}

	sent := 0
	for start := 0; start < len(assets); start += maxAlbum {
		end := min(start+maxAlbum, len(assets))
		album := make(tele.Album, 0, end-start)
		for _, a := range assets[start:end] {
			album = append(album, inputFor(a, ""))
		}
		var err error
		if len(album) == 1 {
			// Media groups need at least two entries.
			_, err = d.api.Send(to, album[0])
		} else {
			_, err = d.api.SendAlbum(to, album)
		}
		if err != nil {
			logger.Warn(ctx, "tg", "card.album",
				slog.String("status", "fail"),
				slog.Int("requested", len(album)),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			break
		}
		sent += len(album)
	}
	logger.Debug(ctx, "tg", "card.album",
		slog.String("status", "ok"),
		slog.Int("requested", len(assets)),
		slog.Int("resolved", sent),
	)
	_, err := d.api.Send(to, card.Text, opts)
	return err
}

// assets resolves the card media. When every record fails the placeholder
// stands in, if configured.
func (d *Deliverer) assets(ctx context.Context, recs []catalog.MediaRecord) []media.Asset {
	if d.resolver == nil || len(recs) == 0 {
		return nil
	}
	assets := d.resolver.ResolveBatch(ctx, recs)
	if len(assets) > 0 {
		return assets
	}
	if p, ok := d.resolver.Placeholder(); ok {
		return []media.Asset{p}
	}
	return nil
}

func inputFor(a media.Asset, caption string) tele.Inputtable {
	file := tele.File{FileID: a.Handle}
	if a.Handle == "" {
		file = tele.FromDisk(a.Path)
	}
	if a.Kind == catalog.MediaVideo {
		return &tele.Video{File: file, Caption: caption}
	}
	return &tele.Photo{File: file, Caption: caption}
}
