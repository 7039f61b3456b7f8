// Package netutil classifies failed Telegram API calls so callers can decide
// whether repeating one risks a duplicate message in the chat.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Kind is the class of a failed call.
type Kind string

const (
	KindNone Kind = ""
	// KindUnsent means the request never reached Telegram.
	KindUnsent  Kind = "unsent"
	KindDNS     Kind = "dns"
	KindFlood   Kind = "flood"
	KindTimeout Kind = "timeout"
	KindTLS     Kind = "tls"
	KindHTTP4xx Kind = "http_4xx"
	KindHTTP5xx Kind = "http_5xx"
	KindUnknown Kind = "unknown"
)

// Classify maps err to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindFlood
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 {
			return KindHTTP5xx
		}
		return KindHTTP4xx
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnsent
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindUnsent
	}

	var certErr *tls.CertificateVerificationError
	var alertErr tls.AlertError
	if errors.As(err, &certErr) || errors.As(err, &alertErr) {
		return KindTLS
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return KindTimeout
	}
	return KindUnknown
}

// Unsent reports whether err proves the request was never delivered.
func Unsent(err error) bool {
	k := Classify(err)
	return k == KindUnsent || k == KindDNS
}

// Retryable reports whether a call failing with err may be repeated without
// risking a duplicate message.
func Retryable(err error) bool {
	return Unsent(err) || Classify(err) == KindFlood
}

// RetryAfter returns the wait Telegram asked for on a flood error.
func RetryAfter(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	return time.Duration(flood.RetryAfter) * time.Second, true
}
