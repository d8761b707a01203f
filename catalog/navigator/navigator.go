// Package navigator walks the category trees on demand and turns each step
// into a page of inline buttons encoded with the callback codec.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/catalogbot/catalog"
	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/callbacks"
	"github.com/m3rciful/catalogbot/core/telegram/format"
	"github.com/m3rciful/catalogbot/core/telegram/keyboard"
)

const component = "service.catalog"

const (
	backText    = "⬅️ Back"
	mainText    = "🏠 Main menu"
	inquiryText = "📝 Request a price"
	generalText = "📝 Ask a question"
)

// ErrUnknownKind is returned for a kind outside catalog.Kinds.
var ErrUnknownKind = errors.New("navigator: unknown catalog kind")

// Repository is the read side of the catalog consumed by the navigator.
// parentID 0 addresses the root of a tree.
type Repository interface {
	Children(ctx context.Context, kind catalog.Kind, parentID int64) ([]catalog.Category, error)
	Category(ctx context.Context, id int64) (catalog.Category, error)
	ItemsByCategory(ctx context.Context, kind catalog.Kind, categoryID int64) ([]catalog.Item, error)
	Item(ctx context.Context, kind catalog.Kind, id int64) (catalog.Item, error)
}

// Page is one rendered navigation step. Buttons end with exactly one back button.
type Page struct {
	Kind       catalog.Kind
	Parent     *catalog.Category
	Categories []catalog.Category
	Items      []catalog.Item
	Text       string
	Buttons    []keyboard.InlineBtn
}

// Leaf reports whether the page lists items rather than subcategories.
func (p Page) Leaf() bool { return len(p.Categories) == 0 }

// Detail is the rendered item card.
type Detail struct {
	Item    catalog.Item
	Text    string
	Buttons []keyboard.InlineBtn
}

// Navigator renders catalog pages. It keeps no cache so edits made by the
// admin layer show up on the next button press.
type Navigator struct {
	repo Repository
}

// New constructs a Navigator over the given repository.
func New(repo Repository) *Navigator {
	return &Navigator{repo: repo}
}

// MainMenu lists the catalog trees and the general inquiry entry.
func (n *Navigator) MainMenu() (Page, error) {
	buttons := make([]keyboard.InlineBtn, 0, len(catalog.Kinds)+1)
	for _, k := range catalog.Kinds {
		tok, err := callbacks.Page(k.Slug(), 0)
		if err != nil {
			return Page{}, err
		}
		buttons = append(buttons, keyboard.InlineBtn{Text: k.Title(), Data: tok})
	}
	tok, err := callbacks.Write(callbacks.InquiryGeneral, nil)
	if err != nil {
		return Page{}, err
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: generalText, Data: tok})
	return Page{Text: "Welcome! What are you looking for?", Buttons: buttons}, nil
}

// Browse renders the children of parentID in the kind's tree, or its items
// when the node has no children. Nodes that have both only show children.
func (n *Navigator) Browse(ctx context.Context, kind catalog.Kind, parentID int64) (Page, error) {
	if !kind.Valid() {
		return Page{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	page := Page{Kind: kind}
	if parentID != 0 {
		node, err := n.repo.Category(ctx, parentID)
		if err != nil {
			return Page{}, fmt.Errorf("navigator: load category %d: %w", parentID, err)
		}
		if node.Kind != kind {
			return Page{}, fmt.Errorf("navigator: category %d is %s, not %s: %w", parentID, node.Kind, kind, catalog.ErrKindMismatch)
		}
		page.Parent = &node
	}

	back, err := backButton(kind, page.Parent)
	if err != nil {
		return Page{}, err
	}

	children, err := n.repo.Children(ctx, kind, parentID)
	if err != nil {
		return Page{}, fmt.Errorf("navigator: children of %d: %w", parentID, err)
	}

	if len(children) > 0 {
		for _, child := range children {
			if child.Kind != kind {
				logger.Warn(ctx, component, "nav.child.skip",
					slog.String("status", "skip"),
					slog.Int64("category_id", child.ID),
					slog.String("kind", string(child.Kind)),
					slog.String("expected", string(kind)),
				)
				continue
			}
			tok, err := callbacks.Category(child.ID)
			if err != nil {
				return Page{}, err
			}
			page.Categories = append(page.Categories, child)
			page.Buttons = append(page.Buttons, keyboard.InlineBtn{Text: child.Name, Data: tok})
		}
	}

	if len(children) == 0 && page.Parent != nil {
		items, err := n.repo.ItemsByCategory(ctx, kind, parentID)
		if err != nil {
			return Page{}, fmt.Errorf("navigator: items of %d: %w", parentID, err)
		}
		for _, it := range items {
			tok, err := callbacks.Item(kind.Slug(), it.ID)
			if err != nil {
				return Page{}, err
			}
			page.Items = append(page.Items, it)
			page.Buttons = append(page.Buttons, keyboard.InlineBtn{Text: it.Name, Data: tok})
		}
	}

	page.Buttons = append(page.Buttons, back)
	page.Text = pageText(page)

	logger.Debug(ctx, component, "nav.browse",
		slog.String("status", "ok"),
		slog.String("kind", string(kind)),
		slog.Int64("category_id", parentID),
		slog.Int("categories", len(page.Categories)),
		slog.Int("items", len(page.Items)),
	)
	return page, nil
}

// Select renders a category addressed only by id; the tree is the node's own.
func (n *Navigator) Select(ctx context.Context, categoryID int64) (Page, error) {
	node, err := n.repo.Category(ctx, categoryID)
	if err != nil {
		return Page{}, fmt.Errorf("navigator: load category %d: %w", categoryID, err)
	}
	return n.Browse(ctx, node.Kind, node.ID)
}

// ItemDetail renders the card of one item, with an inquiry button for
// products and services and a way back to the item's category.
func (n *Navigator) ItemDetail(ctx context.Context, kind catalog.Kind, id int64) (Detail, error) {
	if !kind.Valid() {
		return Detail{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	it, err := n.repo.Item(ctx, kind, id)
	if err != nil {
		return Detail{}, fmt.Errorf("navigator: load item %s/%d: %w", kind, id, err)
	}
	if it.Kind != "" && it.Kind != kind {
		return Detail{}, fmt.Errorf("navigator: item %d is %s, not %s: %w", id, it.Kind, kind, catalog.ErrKindMismatch)
	}

	var buttons []keyboard.InlineBtn
	if subject := catalog.SubjectFor(kind, it.ID); subject.HasItem() {
		tok, err := callbacks.Inquiry(string(subject.Kind), it.ID)
		if err != nil {
			return Detail{}, err
		}
		buttons = append(buttons, keyboard.InlineBtn{Text: inquiryText, Data: tok})
	}
	tok, err := callbacks.Page(kind.Slug(), it.CategoryID)
	if err != nil {
		return Detail{}, err
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: backText, Data: tok})

	return Detail{Item: it, Text: ItemText(it), Buttons: buttons}, nil
}

// ItemText composes the Markdown card body for an item.
func ItemText(it catalog.Item) string {
	var b strings.Builder
	b.WriteString("*")
	b.WriteString(escape(it.Name))
	b.WriteString("*")
	if d := strings.TrimSpace(it.Description); d != "" {
		b.WriteString("\n\n")
		b.WriteString(escape(d))
	}
	if it.Kind != catalog.KindEducation {
		b.WriteString("\n\nPrice: ")
		b.WriteString(escape(it.FormatPrice()))
	}
	return b.String()
}

func backButton(kind catalog.Kind, parent *catalog.Category) (keyboard.InlineBtn, error) {
	if parent == nil {
		tok, err := callbacks.Write(callbacks.MainMenu, nil)
		return keyboard.InlineBtn{Text: mainText, Data: tok}, err
	}
	tok, err := callbacks.BackTo(kind.Slug(), format.Deref(parent.ParentID, 0))
	return keyboard.InlineBtn{Text: backText, Data: tok}, err
}

func pageText(p Page) string {
	switch {
	case p.Parent == nil && len(p.Categories) == 0:
		return "This section is empty for now."
	case p.Parent == nil:
		return fmt.Sprintf("%s: choose a category", p.Kind.Title())
	case len(p.Categories) > 0:
		return fmt.Sprintf("%s: choose a subcategory", p.Parent.Name)
	case len(p.Items) > 0:
		return fmt.Sprintf("%s: choose an item", p.Parent.Name)
	default:
		return fmt.Sprintf("%s: nothing here yet", p.Parent.Name)
	}
}

func escape(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1, "")
	if err != nil {
		return s
	}
	return out
}
