package helpers

import tele "gopkg.in/telebot.v4"

const outboundKey = "outbound"

// Outbound counts what a handler queued for delivery during one update.
// Calls are counted when queued, so the totals are final when the handler returns.
type Outbound struct {
	Messages  int
	Edits     int
	Keyboards int
}

// TrackOutbound starts counting for the update behind c.
func TrackOutbound(c tele.Context) *Outbound {
	out := &Outbound{}
	c.Set(outboundKey, out)
	return out
}

// OutboundOf returns the counters of the update; zero when untracked.
func OutboundOf(c tele.Context) Outbound {
	if out, ok := c.Get(outboundKey).(*Outbound); ok && out != nil {
		return *out
	}
	return Outbound{}
}

func countOutbound(c tele.Context, edit, keyboard bool) {
	out, ok := c.Get(outboundKey).(*Outbound)
	if !ok || out == nil {
		return
	}
	if edit {
		out.Edits++
	} else {
		out.Messages++
	}
	if keyboard {
		out.Keyboards++
	}
}
