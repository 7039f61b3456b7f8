package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt64String parses payloads like "12|faq_menu" into a number and the
// remaining text. The text may itself contain sep.
func PayloadInt64String(c tele.Context, sep string) (int64, string, error) {
	head, tail, ok := strings.Cut(CallbackPayload(c), sep)
	if !ok || tail == "" {
		return 0, "", strconv.ErrSyntax
	}
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return n, tail, nil
}

// JoinPayload builds a payload from parts with sep.
func JoinPayload(sep string, parts ...string) string {
	return strings.Join(parts, sep)
}
