package telegram

import (
	"context"
	"errors"
	"net"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CallError separates failures the caller may retry (network trouble,
// server-side errors, timeouts) from ones it must not (permission denied,
// user not found, malformed request).
type CallError struct {
	Err       error
	Transient bool
}

func (e *CallError) Error() string { return e.Err.Error() }

func (e *CallError) Unwrap() error { return e.Err }

var errPermanent = &CallError{Err: errors.New("not resolvable via platform"), Transient: false}

func IsTransient(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Transient
	}
	return false
}

func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &CallError{Err: err, Transient: apiErr.Code >= 500 || apiErr.Code == 429}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Err: err, Transient: true}
	}

	return &CallError{Err: err, Transient: true}
}
