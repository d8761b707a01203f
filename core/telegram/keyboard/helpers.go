// Package keyboard lays out inline keyboards whose buttons carry callback
// tokens verbatim as callback_data.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is one inline button: its label and the callback token it sends.
type InlineBtn struct {
	Text string
	Data string
}

func (b InlineBtn) inline() tele.InlineButton {
	return tele.InlineButton{Text: b.Text, Data: b.Data}
}

// InlineButtons puts every button on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	return InlineButtonsNPerRow(buttons, 1)
}

// InlineButtonsRows builds a keyboard from explicit rows; empty rows are
// skipped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	kb := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tele.InlineButton, len(row))
		for i, b := range row {
			out[i] = b.inline()
		}
		kb = append(kb, out)
	}
	return &tele.ReplyMarkup{InlineKeyboard: kb}
}

// InlineButtonsNPerRow fills rows with up to n buttons; n below 1 means one
// per row.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(rowsOf(buttons, n)...)
}

// WithFooter lays out all but the last button n per row and keeps the last
// one, the navigation button, alone on the final row.
func WithFooter(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return InlineButtonsRows()
	}
	last := len(buttons) - 1
	return InlineButtonsRows(append(rowsOf(buttons[:last], n), buttons[last:])...)
}

func rowsOf(buttons []InlineBtn, n int) [][]InlineBtn {
	n = max(n, 1)
	var rows [][]InlineBtn
	for len(buttons) > 0 {
		k := min(n, len(buttons))
		rows = append(rows, buttons[:k])
		buttons = buttons[k:]
	}
	return rows
}
