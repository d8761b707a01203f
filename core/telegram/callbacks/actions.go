package callbacks

import (
	"regexp"
	"strings"
)

// MaxTokenLen is the Telegram limit for callback_data.
const MaxTokenLen = 64

// Type identifies a callback action.
type Type string

const (
	MainMenu       Type = "main_menu"
	InquiryGeneral Type = "inquiry_general"
	ConfirmInquiry Type = "confirm_inquiry"
	CancelInquiry  Type = "cancel_inquiry"

	CategorySelect  Type = "category_select"
	ProductSelect   Type = "product_select"
	ServiceSelect   Type = "service_select"
	EducationSelect Type = "education_select"
	InquiryStart    Type = "inquiry_start"
	CategoryPage    Type = "category_page"
	Back            Type = "back"
)

// Param names used by the registered schemas.
const (
	ParamID       = "id"
	ParamKind     = "kind"
	ParamItemType = "item_type"
	ParamItemID   = "item_id"
)

// KindSlugs are the catalog kinds accepted in prefixed page and back tokens.
var KindSlugs = []string{"product", "service", "edu"}

// ItemTypes are the item kinds an inquiry can reference.
var ItemTypes = []string{"product", "service"}

type paramKind int

const (
	paramInt paramKind = iota
	paramEnum
)

// param describes one typed placeholder of a token template.
type param struct {
	name   string
	kind   paramKind
	values []string
}

func (p param) pattern() string {
	if p.kind == paramEnum {
		quoted := make([]string, len(p.values))
		for i, v := range p.values {
			quoted[i] = regexp.QuoteMeta(v)
		}
		return "(" + strings.Join(quoted, "|") + ")"
	}
	return `(\d{1,19})`
}

type segment struct {
	literal string
	param   *param
}

type entry struct {
	typ      Type
	template string
	segments []segment
	params   []param
	re       *regexp.Regexp
}

func (e entry) static() bool { return len(e.params) == 0 }

func idParam(name string) param { return param{name: name, kind: paramInt} }

func enumParam(name string, values ...string) param {
	return param{name: name, kind: paramEnum, values: values}
}

// table is scanned in order by Read; static literals come first because some
// of them are prefixes of dynamic tokens ("inquiry" vs "inquiry:product:1").
var table = buildTable([]struct {
	typ      Type
	template string
	params   []param
}{
	{MainMenu, "back_main", nil},
	{InquiryGeneral, "inquiry", nil},
	{ConfirmInquiry, "confirm_inquiry", nil},
	{CancelInquiry, "cancel_inquiry", nil},

	{CategorySelect, "category:{id}", []param{idParam(ParamID)}},
	{ProductSelect, "product:{id}", []param{idParam(ParamID)}},
	{ServiceSelect, "service:{id}", []param{idParam(ParamID)}},
	{EducationSelect, "education:{id}", []param{idParam(ParamID)}},
	{InquiryStart, "inquiry:{item_type}:{item_id}", []param{
		enumParam(ParamItemType, ItemTypes...),
		idParam(ParamItemID),
	}},
	{CategoryPage, "{kind}_cat_{id}", []param{
		enumParam(ParamKind, KindSlugs...),
		idParam(ParamID),
	}},
	{Back, "back_{kind}_{id}", []param{
		enumParam(ParamKind, KindSlugs...),
		idParam(ParamID),
	}},
})

var byType = func() map[Type]*entry {
	m := make(map[Type]*entry, len(table))
	for i := range table {
		m[table[i].typ] = &table[i]
	}
	return m
}()

func buildTable(defs []struct {
	typ      Type
	template string
	params   []param
}) []entry {
	out := make([]entry, 0, len(defs))
	for _, d := range defs {
		e := entry{typ: d.typ, template: d.template, params: d.params}
		lookup := make(map[string]param, len(d.params))
		for _, p := range d.params {
			lookup[p.name] = p
		}

		var (
			re  strings.Builder
			raw = d.template
		)
		re.WriteString("^")
		for raw != "" {
			open := strings.IndexByte(raw, '{')
			if open < 0 {
				e.segments = append(e.segments, segment{literal: raw})
				re.WriteString(regexp.QuoteMeta(raw))
				break
			}
			if open > 0 {
				e.segments = append(e.segments, segment{literal: raw[:open]})
				re.WriteString(regexp.QuoteMeta(raw[:open]))
			}
			closing := strings.IndexByte(raw[open:], '}')
			if closing < 0 {
				panic("callbacks: unterminated placeholder in " + d.template)
			}
			name := raw[open+1 : open+closing]
			p, ok := lookup[name]
			if !ok {
				panic("callbacks: placeholder " + name + " without schema in " + d.template)
			}
			e.segments = append(e.segments, segment{param: &p})
			re.WriteString(p.pattern())
			raw = raw[open+closing+1:]
		}
		re.WriteString("$")
		e.re = regexp.MustCompile(re.String())
		out = append(out, e)
	}
	return out
}

// Types returns registered action types in match order.
func Types() []Type {
	out := make([]Type, len(table))
	for i, e := range table {
		out[i] = e.typ
	}
	return out
}

// Known reports whether t is a registered action type.
func Known(t Type) bool {
	_, ok := byType[t]
	return ok
}
