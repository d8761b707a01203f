package callbacks

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	cases := []struct {
		typ    Type
		params Params
		token  string
		want   Params
	}{
		{MainMenu, nil, "back_main", Params{}},
		{InquiryGeneral, nil, "inquiry", Params{}},
		{ConfirmInquiry, nil, "confirm_inquiry", Params{}},
		{CancelInquiry, Params{}, "cancel_inquiry", Params{}},
		{CategorySelect, Params{ParamID: 12}, "category:12", Params{ParamID: int64(12)}},
		{ProductSelect, Params{ParamID: int32(5)}, "product:5", Params{ParamID: int64(5)}},
		{ServiceSelect, Params{ParamID: uint(9)}, "service:9", Params{ParamID: int64(9)}},
		{EducationSelect, Params{ParamID: int64(4)}, "education:4", Params{ParamID: int64(4)}},
		{InquiryStart, Params{ParamItemType: "service", ParamItemID: 77}, "inquiry:service:77",
			Params{ParamItemType: "service", ParamItemID: int64(77)}},
		{CategoryPage, Params{ParamKind: "edu", ParamID: 0}, "edu_cat_0",
			Params{ParamKind: "edu", ParamID: int64(0)}},
		{Back, Params{ParamKind: "product", ParamID: 3}, "back_product_3",
			Params{ParamKind: "product", ParamID: int64(3)}},
	}
	for _, tc := range cases {
		token, err := Write(tc.typ, tc.params)
		if err != nil {
			t.Fatalf("Write(%s): %v", tc.typ, err)
		}
		if token != tc.token {
			t.Fatalf("Write(%s) = %q, want %q", tc.typ, token, tc.token)
		}
		got, ok := Read(token)
		if !ok {
			t.Fatalf("Read(%q) did not match", token)
		}
		if got.Type != tc.typ {
			t.Fatalf("Read(%q).Type = %s, want %s", token, got.Type, tc.typ)
		}
		if !reflect.DeepEqual(got.Params, tc.want) {
			t.Fatalf("Read(%q).Params = %#v, want %#v", token, got.Params, tc.want)
		}
	}
}

func TestEveryTypeHasRoundTripCase(t *testing.T) {
	sample := map[Type]Params{
		CategorySelect:  {ParamID: 1},
		ProductSelect:   {ParamID: 1},
		ServiceSelect:   {ParamID: 1},
		EducationSelect: {ParamID: 1},
		InquiryStart:    {ParamItemType: "product", ParamItemID: 1},
		CategoryPage:    {ParamKind: "service", ParamID: 1},
		Back:            {ParamKind: "edu", ParamID: 1},
	}
	for _, typ := range Types() {
		token, err := Write(typ, sample[typ])
		if err != nil {
			t.Fatalf("Write(%s): %v", typ, err)
		}
		got, ok := Read(token)
		if !ok || got.Type != typ {
			t.Fatalf("Read(%q) = %v, %v; want type %s", token, got.Type, ok, typ)
		}
	}
}

func TestTokenLengthForLargeIDs(t *testing.T) {
	const big = int64(1_000_000_000)
	for _, typ := range Types() {
		var p Params
		switch typ {
		case InquiryStart:
			p = Params{ParamItemType: "service", ParamItemID: big}
		case CategoryPage, Back:
			p = Params{ParamKind: "product", ParamID: big}
		case MainMenu, InquiryGeneral, ConfirmInquiry, CancelInquiry:
		default:
			p = Params{ParamID: big}
		}
		token, err := Write(typ, p)
		if err != nil {
			t.Fatalf("Write(%s): %v", typ, err)
		}
		if len(token) > MaxTokenLen {
			t.Fatalf("token %q exceeds %d bytes", token, MaxTokenLen)
		}
	}

	token, err := Write(InquiryStart, Params{ParamItemType: "service", ParamItemID: int64(1<<63 - 1)})
	if err != nil || len(token) > MaxTokenLen {
		t.Fatalf("max int64 token = %q, %v", token, err)
	}
}

func TestWriteValidation(t *testing.T) {
	cases := []struct {
		name   string
		typ    Type
		params Params
		param  string
	}{
		{"unknown type", Type("teleport"), nil, ""},
		{"missing id", CategorySelect, Params{}, ParamID},
		{"mistyped id", ProductSelect, Params{ParamID: "5"}, ParamID},
		{"negative id", ServiceSelect, Params{ParamID: -1}, ParamID},
		{"enum outside schema", InquiryStart, Params{ParamItemType: "education", ParamItemID: 1}, ParamItemType},
		{"extra param", CategorySelect, Params{ParamID: 1, "page": 2}, "page"},
		{"params on static", ConfirmInquiry, Params{ParamID: 1}, ""},
		{"mistyped enum", Back, Params{ParamKind: 1, ParamID: 1}, ParamKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Write(tc.typ, tc.params)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Param != tc.param {
				t.Fatalf("Param = %q, want %q", vErr.Param, tc.param)
			}
			if vErr.Code() != "VALIDATION_ERROR" {
				t.Fatalf("Code = %q", vErr.Code())
			}
		})
	}
}

func TestReadMisses(t *testing.T) {
	inputs := []string{
		"",
		"not-a-real-token",
		"category:",
		"category:abc",
		"category:1:2",
		"product:-3",
		"inquiry:education:1",
		"inquiry:product",
		"vehicle_cat_1",
		"back_main_0",
		"back_edu_",
		" confirm_inquiry",
		"category:99999999999999999999",
		strings.Repeat("a", 200),
		"\x00\xff",
	}
	for _, in := range inputs {
		if a, ok := Read(in); ok {
			t.Fatalf("Read(%q) matched %s", in, a.Type)
		}
	}
}

func TestReadStaticBeforeDynamic(t *testing.T) {
	a, ok := Read("inquiry")
	if !ok || a.Type != InquiryGeneral {
		t.Fatalf("Read(inquiry) = %v, %v", a.Type, ok)
	}
	a, ok = Read("inquiry:product:7")
	if !ok || a.Type != InquiryStart || a.ID(ParamItemID) != 7 || a.Str(ParamItemType) != "product" {
		t.Fatalf("Read(inquiry:product:7) = %+v, %v", a, ok)
	}
	a, ok = Read("back_main")
	if !ok || a.Type != MainMenu {
		t.Fatalf("Read(back_main) = %v, %v", a.Type, ok)
	}
}

func TestBuilders(t *testing.T) {
	checks := []struct {
		got  func() (string, error)
		want string
	}{
		{func() (string, error) { return Category(3) }, "category:3"},
		{func() (string, error) { return Page("service", 0) }, "service_cat_0"},
		{func() (string, error) { return BackTo("edu", 8) }, "back_edu_8"},
		{func() (string, error) { return Item("edu", 2) }, "education:2"},
		{func() (string, error) { return Item("product", 2) }, "product:2"},
		{func() (string, error) { return Inquiry("product", 2) }, "inquiry:product:2"},
	}
	for _, c := range checks {
		got, err := c.got()
		if err != nil || got != c.want {
			t.Fatalf("got %q, %v; want %q", got, err, c.want)
		}
	}
	if _, err := Item("vehicle", 1); err == nil {
		t.Fatal("expected error for unknown item kind")
	}
}
