// Package catalog holds the domain model shared by the navigator, the inquiry
// flow and the media resolver. Catalog rows are owned by the admin layer; the
// bot only reads them, except for media remote handles and new inquiries.
package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the three catalog trees.
type Kind string

const (
	KindProduct   Kind = "product"
	KindService   Kind = "service"
	KindEducation Kind = "education"
)

// Kinds lists catalog kinds in main-menu order.
var Kinds = []Kind{KindProduct, KindService, KindEducation}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProduct, KindService, KindEducation:
		return true
	}
	return false
}

// Slug returns the short form used inside callback tokens.
func (k Kind) Slug() string {
	if k == KindEducation {
		return "edu"
	}
	return string(k)
}

// Title is the human label shown on menu buttons.
func (k Kind) Title() string {
	switch k {
	case KindProduct:
		return "🛒 Products"
	case KindService:
		return "🛠 Services"
	case KindEducation:
		return "🎓 Education"
	}
	return string(k)
}

// KindFromSlug maps a token slug back to a Kind.
func KindFromSlug(slug string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(slug)) {
	case "product":
		return KindProduct, true
	case "service":
		return KindService, true
	case "edu", "education":
		return KindEducation, true
	}
	return "", false
}

// Category is a node of a catalog tree. Root nodes have no parent.
type Category struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	ParentID *int64 `db:"parent_id"`
	Kind     Kind   `db:"kind"`
}

// IsRoot reports whether the node sits at the top of its tree.
func (c Category) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == 0
}

// Item is a leaf entry attached to a category.
type Item struct {
	ID          int64  `db:"id"`
	Kind        Kind   `db:"kind"`
	Name        string `db:"name"`
	Description string `db:"description"`
	// PriceCents is nil when the price is available on request only.
	PriceCents *int64 `db:"price_cents"`
	CategoryID int64  `db:"category_id"`

	Media []MediaRecord `db:"-"`
}

// FormatPrice renders the price in major units, or "on request" when unknown.
func (it Item) FormatPrice() string {
	if it.PriceCents == nil {
		return "on request"
	}
	p := *it.PriceCents
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}

// SubjectKind tags the inquiry subject variant.
type SubjectKind string

const (
	SubjectGeneral SubjectKind = "general"
	SubjectProduct SubjectKind = "product"
	SubjectService SubjectKind = "service"
)

// Subject is what an inquiry is about: a product, a service, or nothing in
// particular. It is decided once, when the flow starts.
type Subject struct {
	Kind   SubjectKind
	ItemID int64
}

// General returns the subject of an inquiry without an item.
func General() Subject { return Subject{Kind: SubjectGeneral} }

// ProductSubject returns a subject referencing a product.
func ProductSubject(id int64) Subject { return Subject{Kind: SubjectProduct, ItemID: id} }

// ServiceSubject returns a subject referencing a service.
func ServiceSubject(id int64) Subject { return Subject{Kind: SubjectService, ItemID: id} }

// HasItem reports whether the subject references a catalog item.
func (s Subject) HasItem() bool {
	return (s.Kind == SubjectProduct || s.Kind == SubjectService) && s.ItemID > 0
}

// ItemKind returns the catalog kind of the referenced item.
func (s Subject) ItemKind() (Kind, bool) {
	switch s.Kind {
	case SubjectProduct:
		return KindProduct, s.ItemID > 0
	case SubjectService:
		return KindService, s.ItemID > 0
	}
	return "", false
}

// SubjectFor builds a subject for an item of the given kind. Education items
// are not inquiry subjects and yield a general subject.
func SubjectFor(kind Kind, id int64) Subject {
	switch kind {
	case KindProduct:
		return ProductSubject(id)
	case KindService:
		return ServiceSubject(id)
	}
	return General()
}

// InquiryStatus tracks back-office processing of an inquiry.
type InquiryStatus string

const (
	InquiryNew InquiryStatus = "new"
)

// Inquiry is a price request collected by the inquiry flow.
type Inquiry struct {
	ID          int64
	UserID      int64
	Name        string
	Phone       string
	Description string
	Subject     Subject
	Status      InquiryStatus
	CreatedAt   time.Time
}

// MediaKind is the delivery type of a media asset.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaRecord points at an asset either already known to the delivery
// channel (RemoteHandle) or stored on local disk (LocalPath).
type MediaRecord struct {
	ID           int64     `db:"id"`
	OwnerType    Kind      `db:"owner_type"`
	OwnerID      int64     `db:"owner_id"`
	RemoteHandle string    `db:"remote_handle"`
	LocalPath    string    `db:"local_path"`
	Kind         MediaKind `db:"kind"`
	Position     int       `db:"position"`
}

// Validate checks the record invariant: at least one source must be present.
func (m MediaRecord) Validate() error {
	if strings.TrimSpace(m.RemoteHandle) == "" && strings.TrimSpace(m.LocalPath) == "" {
		return fmt.Errorf("media %d: neither remote handle nor local path set", m.ID)
	}
	switch m.Kind {
	case MediaPhoto, MediaVideo:
	default:
		return fmt.Errorf("media %d: unsupported kind %q", m.ID, m.Kind)
	}
	return nil
}
