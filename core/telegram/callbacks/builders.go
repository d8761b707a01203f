package callbacks

// Shorthands for the tokens the bot renders most often.

// Category encodes a category-select token.
func Category(id int64) (string, error) {
	return Write(CategorySelect, Params{ParamID: id})
}

// Page encodes a prefixed category page token; id 0 is the kind's root list.
func Page(kindSlug string, id int64) (string, error) {
	return Write(CategoryPage, Params{ParamKind: kindSlug, ParamID: id})
}

// BackTo encodes a back-navigation token; id 0 is the kind's root list.
func BackTo(kindSlug string, id int64) (string, error) {
	return Write(Back, Params{ParamKind: kindSlug, ParamID: id})
}

// Item encodes the select token for an item of the given kind slug.
func Item(kindSlug string, id int64) (string, error) {
	switch kindSlug {
	case "product":
		return Write(ProductSelect, Params{ParamID: id})
	case "service":
		return Write(ServiceSelect, Params{ParamID: id})
	case "edu", "education":
		return Write(EducationSelect, Params{ParamID: id})
	}
	return "", &ValidationError{Type: ProductSelect, Param: ParamKind, Reason: "unknown item kind " + kindSlug}
}

// Inquiry encodes an inquiry-start token for a product or service.
func Inquiry(itemType string, id int64) (string, error) {
	return Write(InquiryStart, Params{ParamItemType: itemType, ParamItemID: id})
}
