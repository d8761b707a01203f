package navigator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3rciful/catalogbot/catalog"
)

type fakeRepo struct {
	categories []catalog.Category
	items      []catalog.Item
}

func (f fakeRepo) Children(_ context.Context, kind catalog.Kind, parentID int64) ([]catalog.Category, error) {
	var out []catalog.Category
	for _, c := range f.categories {
		p := int64(0)
		if c.ParentID != nil {
			p = *c.ParentID
		}
		if p == parentID && (parentID != 0 || c.Kind == kind) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeRepo) Category(_ context.Context, id int64) (catalog.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return catalog.Category{}, catalog.ErrNotFound
}

func (f fakeRepo) ItemsByCategory(_ context.Context, kind catalog.Kind, categoryID int64) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, it := range f.items {
		if it.Kind == kind && it.CategoryID == categoryID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f fakeRepo) Item(_ context.Context, kind catalog.Kind, id int64) (catalog.Item, error) {
	for _, it := range f.items {
		if it.ID == id && it.Kind == kind {
			return it, nil
		}
	}
	return catalog.Item{}, catalog.ErrNotFound
}

func ptr(v int64) *int64 { return &v }

// Products: 1 Tools -> 2 Drills (items 10, 11), 3 Saws (empty)
// Services: 4 Repair (item 20)
// Education: 5 Courses (item 30)
func fixture() fakeRepo {
	return fakeRepo{
		categories: []catalog.Category{
			{ID: 1, Name: "Tools", Kind: catalog.KindProduct},
			{ID: 2, Name: "Drills", ParentID: ptr(1), Kind: catalog.KindProduct},
			{ID: 3, Name: "Saws", ParentID: ptr(1), Kind: catalog.KindProduct},
			{ID: 4, Name: "Repair", Kind: catalog.KindService},
			{ID: 5, Name: "Courses", Kind: catalog.KindEducation},
			{ID: 6, Name: "Stray", ParentID: ptr(1), Kind: catalog.KindService},
		},
		items: []catalog.Item{
			{ID: 10, Kind: catalog.KindProduct, Name: "Cordless_drill", CategoryID: 2, PriceCents: ptr(12999)},
			{ID: 11, Kind: catalog.KindProduct, Name: "Hammer drill", CategoryID: 2},
			{ID: 20, Kind: catalog.KindService, Name: "Tune-up", CategoryID: 4},
			{ID: 30, Kind: catalog.KindEducation, Name: "Basics", CategoryID: 5},
			{ID: 12, Kind: catalog.KindProduct, Name: "Ghost", CategoryID: 1},
		},
	}
}

func tokens(p Page) []string {
	out := make([]string, len(p.Buttons))
	for i, b := range p.Buttons {
		out[i] = b.Data
	}
	return out
}

func TestMainMenu(t *testing.T) {
	p, err := New(fixture()).MainMenu()
	if err != nil {
		t.Fatalf("MainMenu: %v", err)
	}
	want := []string{"product_cat_0", "service_cat_0", "edu_cat_0", "inquiry"}
	if got := tokens(p); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
}

func TestBrowseRootListsTopLevelWithMainBack(t *testing.T) {
	p, err := New(fixture()).Browse(context.Background(), catalog.KindProduct, 0)
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	if got := tokens(p); len(got) != 2 || got[0] != "category:1" || got[1] != "back_main" {
		t.Fatalf("tokens = %v", got)
	}
	if p.Parent != nil {
		t.Fatal("root page has no parent")
	}
}

func TestBrowseChildrenWinOverItems(t *testing.T) {
	p, err := New(fixture()).Browse(context.Background(), catalog.KindProduct, 1)
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	got := tokens(p)
	// Stray (service kind) is skipped; Ghost item is hidden behind children.
	if len(got) != 3 || got[0] != "category:2" || got[1] != "category:3" || got[2] != "back_product_0" {
		t.Fatalf("tokens = %v", got)
	}
	if p.Leaf() || len(p.Items) != 0 {
		t.Fatal("node with children must not list items")
	}
}

func TestBrowseMisfiledChildrenStillHideItems(t *testing.T) {
	repo := fakeRepo{
		categories: []catalog.Category{
			{ID: 1, Name: "Tools", Kind: catalog.KindProduct},
			{ID: 2, Name: "Stray", ParentID: ptr(1), Kind: catalog.KindService},
		},
		items: []catalog.Item{{ID: 10, Kind: catalog.KindProduct, Name: "Ghost", CategoryID: 1}},
	}
	p, err := New(repo).Browse(context.Background(), catalog.KindProduct, 1)
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	if got := tokens(p); len(got) != 1 || got[0] != "back_product_0" {
		t.Fatalf("tokens = %v, want only the back button", got)
	}
	if len(p.Items) != 0 {
		t.Fatalf("items = %v, a node with children must not list items", p.Items)
	}
}

func TestBrowseLeafListsItemsPlusBack(t *testing.T) {
	p, err := New(fixture()).Browse(context.Background(), catalog.KindProduct, 2)
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	got := tokens(p)
	if len(got) != len(p.Items)+1 || len(p.Items) != 2 {
		t.Fatalf("tokens = %v", got)
	}
	if got[0] != "product:10" || got[1] != "product:11" || got[2] != "back_product_1" {
		t.Fatalf("tokens = %v", got)
	}
	if !p.Leaf() {
		t.Fatal("expected leaf page")
	}
}

func TestBrowseEmptyLeafOnlyBack(t *testing.T) {
	p, err := New(fixture()).Browse(context.Background(), catalog.KindProduct, 3)
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	if got := tokens(p); len(got) != 1 || got[0] != "back_product_1" {
		t.Fatalf("tokens = %v", got)
	}
}

func TestBrowseKindMismatch(t *testing.T) {
	_, err := New(fixture()).Browse(context.Background(), catalog.KindService, 2)
	if !errors.Is(err, catalog.ErrKindMismatch) {
		t.Fatalf("err = %v, want ErrKindMismatch", err)
	}
}

func TestBrowseUnknownKindAndMissingNode(t *testing.T) {
	nav := New(fixture())
	if _, err := nav.Browse(context.Background(), catalog.Kind("vehicle"), 0); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
	if _, err := nav.Browse(context.Background(), catalog.KindProduct, 99); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSelectUsesNodeKind(t *testing.T) {
	p, err := New(fixture()).Select(context.Background(), 4)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Kind != catalog.KindService {
		t.Fatalf("kind = %s", p.Kind)
	}
	if got := tokens(p); len(got) != 2 || got[0] != "service:20" || got[1] != "back_service_0" {
		t.Fatalf("tokens = %v", got)
	}
}

func TestItemDetailProductHasInquiry(t *testing.T) {
	d, err := New(fixture()).ItemDetail(context.Background(), catalog.KindProduct, 10)
	if err != nil {
		t.Fatalf("ItemDetail: %v", err)
	}
	if len(d.Buttons) != 2 || d.Buttons[0].Data != "inquiry:product:10" || d.Buttons[1].Data != "product_cat_2" {
		t.Fatalf("buttons = %#v", d.Buttons)
	}
	if !strings.Contains(d.Text, `Cordless\_drill`) || !strings.Contains(d.Text, "129.99") {
		t.Fatalf("text = %q", d.Text)
	}
}

func TestItemDetailEducationHasNoInquiry(t *testing.T) {
	d, err := New(fixture()).ItemDetail(context.Background(), catalog.KindEducation, 30)
	if err != nil {
		t.Fatalf("ItemDetail: %v", err)
	}
	if len(d.Buttons) != 1 || d.Buttons[0].Data != "edu_cat_5" {
		t.Fatalf("buttons = %#v", d.Buttons)
	}
	if strings.Contains(d.Text, "Price") {
		t.Fatalf("education card must not show price: %q", d.Text)
	}
}

func TestItemDetailWrongKind(t *testing.T) {
	_, err := New(fixture()).ItemDetail(context.Background(), catalog.KindService, 10)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
