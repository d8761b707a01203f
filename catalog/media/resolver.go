// Package media turns stored media records into something the chat platform
// can deliver: a reusable remote handle, a fresh upload, or a placeholder.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/catalogbot/catalog"
	"github.com/m3rciful/catalogbot/core/logger"
)

const component = "service.media"

var (
	// ErrUnresolvable means neither the remote handle nor the local file could
	// be used. The caller shows a placeholder or falls back to text.
	ErrUnresolvable = errors.New("media: unresolvable record")

	errOutsideRoot = errors.New("media: path escapes media root")
)

// ChannelError wraps a failure reported by the delivery channel. It only
// advances the fallback and never reaches Resolve callers.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string { return fmt.Sprintf("media channel %s: %v", e.Op, e.Err) }

// Unwrap exposes the underlying cause.
func (e *ChannelError) Unwrap() error { return e.Err }

// Code is picked up by the handler summary logs.
func (e *ChannelError) Code() string { return "REMOTE_CHANNEL_ERROR" }

// Channel is the platform side of media delivery.
type Channel interface {
	// Probe returns nil when handle is still accepted by the platform.
	Probe(ctx context.Context, handle string) error
	// Upload sends a local file and returns the handle the platform assigned.
	Upload(ctx context.Context, kind catalog.MediaKind, path string) (string, error)
}

// Records persists handles learned from uploads.
type Records interface {
	SetRemoteHandle(ctx context.Context, mediaID int64, handle string) error
}

// Asset is a deliverable media reference. Exactly one of Handle or Path is set.
type Asset struct {
	MediaID     int64
	Kind        catalog.MediaKind
	Handle      string
	Path        string
	Placeholder bool
}

// Options configures a Resolver.
type Options struct {
	Channel Channel
	Records Records
	// Root anchors relative local paths; empty means the working directory.
	Root string
	// PlaceholderHandle or PlaceholderPath is served when nothing resolves.
	PlaceholderHandle string
	PlaceholderPath   string
}

// Resolver applies the handle, upload, placeholder fallback.
type Resolver struct {
	channel     Channel
	records     Records
	root        string
	placeholder Asset

	// uploads collapses concurrent uploads of the same record.
	uploads singleflight.Group
}

// New constructs a Resolver.
func New(opts Options) *Resolver {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	r := &Resolver{channel: opts.Channel, records: opts.Records, root: root}
	switch {
	case strings.TrimSpace(opts.PlaceholderHandle) != "":
		r.placeholder = Asset{Kind: catalog.MediaPhoto, Handle: strings.TrimSpace(opts.PlaceholderHandle), Placeholder: true}
	case strings.TrimSpace(opts.PlaceholderPath) != "":
		if p, err := r.localPath(opts.PlaceholderPath); err == nil {
			r.placeholder = Asset{Kind: catalog.MediaPhoto, Path: p, Placeholder: true}
		}
	}
	return r
}

// Resolve returns a deliverable asset for rec. When nothing resolves it
// returns the placeholder asset, if one is configured, together with
// ErrUnresolvable.
func (r *Resolver) Resolve(ctx context.Context, rec catalog.MediaRecord) (Asset, error) {
	asset, err := r.resolve(ctx, rec)
	if err == nil {
		return asset, nil
	}
	logger.Warn(ctx, component, "media.placeholder",
		slog.String("status", "fail"),
		slog.Int64("media_id", rec.ID),
		slog.Bool("available", r.HasPlaceholder()),
	)
	if r.HasPlaceholder() {
		return r.placeholder, err
	}
	return Asset{}, err
}

// ResolveBatch resolves each record independently and keeps only the ones
// that resolved, in input order. The result may be empty.
func (r *Resolver) ResolveBatch(ctx context.Context, recs []catalog.MediaRecord) []Asset {
	out := make([]Asset, 0, len(recs))
	for _, rec := range recs {
		asset, err := r.resolve(ctx, rec)
		if err != nil {
			continue
		}
		out = append(out, asset)
	}
	logger.Debug(ctx, component, "media.batch",
		slog.String("status", "ok"),
		slog.Int("requested", len(recs)),
		slog.Int("resolved", len(out)),
	)
	return out
}

// HasPlaceholder reports whether a placeholder asset is configured.
func (r *Resolver) HasPlaceholder() bool {
	return r.placeholder.Handle != "" || r.placeholder.Path != ""
}

// Placeholder returns the configured placeholder asset.
func (r *Resolver) Placeholder() (Asset, bool) {
	return r.placeholder, r.HasPlaceholder()
}

func (r *Resolver) resolve(ctx context.Context, rec catalog.MediaRecord) (Asset, error) {
	kind := rec.Kind
	if kind == "" {
		kind = catalog.MediaPhoto
	}
	base := Asset{MediaID: rec.ID, Kind: kind}

	if handle := strings.TrimSpace(rec.RemoteHandle); handle != "" && r.channel != nil {
		err := r.channel.Probe(ctx, handle)
		if err == nil {
			base.Handle = handle
			return base, nil
		}
		r.logChannel(ctx, rec, &ChannelError{Op: "probe", Err: err})
	}

	if strings.TrimSpace(rec.LocalPath) == "" || r.channel == nil {
		return Asset{}, fmt.Errorf("%w: media %d", ErrUnresolvable, rec.ID)
	}
	path, err := r.localPath(rec.LocalPath)
	if err != nil {
		logger.Warn(ctx, component, "media.local",
			slog.String("status", "fail"),
			slog.Int64("media_id", rec.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return Asset{}, fmt.Errorf("%w: media %d: %v", ErrUnresolvable, rec.ID, err)
	}

	v, err, shared := r.uploads.Do(uploadKey(rec.ID, path), func() (any, error) {
		return r.upload(ctx, rec.ID, kind, path)
	})
	if err != nil {
		r.logChannel(ctx, rec, &ChannelError{Op: "upload", Err: err})
		return Asset{}, fmt.Errorf("%w: media %d", ErrUnresolvable, rec.ID)
	}
	logger.Info(ctx, component, "media.upload",
		slog.String("status", "ok"),
		slog.Int64("media_id", rec.ID),
		slog.String("kind", string(kind)),
		slog.Bool("shared", shared),
	)
	base.Handle = v.(string)
	return base, nil
}

// upload sends the file and writes the handle back before returning it.
func (r *Resolver) upload(ctx context.Context, mediaID int64, kind catalog.MediaKind, path string) (string, error) {
	handle, err := r.channel.Upload(ctx, kind, path)
	if err != nil {
		return "", err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", errors.New("empty handle")
	}
	r.remember(ctx, mediaID, handle)
	return handle, nil
}

func uploadKey(mediaID int64, path string) string {
	if mediaID > 0 {
		return strconv.FormatInt(mediaID, 10)
	}
	return "path:" + path
}

// remember writes the fresh handle back before the asset is used. A failed
// write is logged; the handle is still served for this delivery.
func (r *Resolver) remember(ctx context.Context, mediaID int64, handle string) {
	if r.records == nil || mediaID <= 0 {
		return
	}
	if err := r.records.SetRemoteHandle(ctx, mediaID, handle); err != nil {
		logger.Error(ctx, component, "media.handle.store",
			slog.String("status", "fail"),
			slog.Int64("media_id", mediaID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", "REPOSITORY_ERROR"),
		)
	}
}

// localPath anchors p under the media root and requires a regular file.
func (r *Resolver) localPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(r.root, full)
	if err != nil || !filepath.IsLocal(rel) {
		return "", errOutsideRoot
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("media: %s is not a regular file", rel)
	}
	return full, nil
}

func (r *Resolver) logChannel(ctx context.Context, rec catalog.MediaRecord, err *ChannelError) {
	logger.Warn(ctx, component, "media."+err.Op,
		slog.String("status", "fail"),
		slog.Int64("media_id", rec.ID),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", err.Code()),
	)
}
