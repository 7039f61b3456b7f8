package keyboard

import (
	"strings"
	"testing"
)

func TestGridLayout(t *testing.T) {
	btns := []Button{
		{Text: "English", Unique: "opt", Data: "1|lang_en"},
		{Text: "Hindi", Unique: "opt", Data: "1|lang_hi"},
		{Text: "Third", Unique: "opt", Data: "1|x"},
	}

	rm := Grid(btns, 2)
	if len(rm.InlineKeyboard) != 2 || len(rm.InlineKeyboard[0]) != 2 || len(rm.InlineKeyboard[1]) != 1 {
		t.Fatalf("unexpected layout: %+v", rm.InlineKeyboard)
	}
	first := rm.InlineKeyboard[0][0]
	if first.Text != "English" || first.Unique != "opt" || first.Data != "1|lang_en" {
		t.Fatalf("first button = %+v", first)
	}

	if rows := Grid(btns, 0).InlineKeyboard; len(rows) != 3 {
		t.Fatalf("one per row expected, got %d rows", len(rows))
	}
	if rows := Grid(nil, 3).InlineKeyboard; len(rows) != 0 {
		t.Fatalf("empty input should give no rows, got %d", len(rows))
	}
	if len(Empty().InlineKeyboard) != 0 {
		t.Fatal("empty markup carries buttons")
	}
}

func TestButtonFits(t *testing.T) {
	if !(Button{Unique: "opt", Data: "9223372036854775807|faq_emergency_assistance"}).Fits() {
		t.Fatal("largest conversation payload must fit")
	}
	if (Button{Unique: "opt", Data: strings.Repeat("x", 60)}).Fits() {
		t.Fatal("oversized payload reported as fitting")
	}
}
