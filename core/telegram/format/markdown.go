package format

import (
	"fmt"
	"regexp"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

// EntityCode marks text placed inside a pre/code entity in MarkdownV2.
const EntityCode = "code"

var (
	mdV1Re     = regexp.MustCompile("[_*`\\[]")
	mdV2Re     = regexp.MustCompile("[" + regexp.QuoteMeta("_*[]()~`>#+=|{}.!\\") + "-]")
	mdV2CodeRe = regexp.MustCompile("[`\\\\]")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
// For V2, entityType EntityCode only escapes backtick and backslash.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$0`), nil
	case MarkdownV2:
		if entityType == EntityCode {
			return mdV2CodeRe.ReplaceAllString(text, `\$0`), nil
		}
		return mdV2Re.ReplaceAllString(text, `\$0`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}
