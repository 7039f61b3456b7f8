// Package keyboard builds inline keyboards from flat button lists.
package keyboard

import tele "gopkg.in/telebot.v4"

// MaxCallbackData is the Bot API limit on callback data, including the
// "\f<unique>|" prefix telebot adds.
const MaxCallbackData = 64

// Button is one inline button routed by Unique with payload Data.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Fits reports whether b's callback data stays within MaxCallbackData once packed.
func (b Button) Fits() bool {
	return len("\f"+b.Unique+"|"+b.Data) <= MaxCallbackData
}

// Grid lays buttons out left to right, columns per row. columns < 1 means one per row.
func Grid(buttons []Button, columns int) *tele.ReplyMarkup {
	if columns < 1 {
		columns = 1
	}
	rm := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, (len(buttons)+columns-1)/columns)
	for start := 0; start < len(buttons); start += columns {
		end := min(start+columns, len(buttons))
		row := make([]tele.InlineButton, 0, end-start)
		for _, b := range buttons[start:end] {
			row = append(row, *rm.Data(b.Text, b.Unique, b.Data).Inline())
		}
		rows = append(rows, row)
	}
	rm.InlineKeyboard = rows
	return rm
}
