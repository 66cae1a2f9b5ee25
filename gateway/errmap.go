package gateway

import (
	"strings"

	"github.com/sobhagya/callcore/internal/errors"
)

const (
	ErrTargetOffline       errors.Code = "target offline"
	ErrTargetBusy          errors.Code = "target busy"
	ErrInsufficientBalance errors.Code = "insufficient balance"
	ErrAlreadyInProgress   errors.Code = "call already in progress"
	ErrUnknownBackend      errors.Code = "unknown backend error"
	ErrBadResponse         errors.Code = "bad backend response"
)

// The backend reports call-token failures as human-readable strings, not
// codes. Matching on them is brittle by nature, so every known message lives
// in this one table. Matches are case-insensitive substring checks because
// the backend has shipped several phrasings of the same failure.
var backendMessagePatterns = []struct {
	substr string
	code   errors.Code
}{
	{"dont_have_enough_balance", ErrInsufficientBalance},
	{"insufficient balance", ErrInsufficientBalance},
	{"recharge", ErrInsufficientBalance},
	{"not_online", ErrTargetOffline},
	{"not online", ErrTargetOffline},
	{"offline", ErrTargetOffline},
	{"already_in_call", ErrAlreadyInProgress},
	{"already in progress", ErrAlreadyInProgress},
	{"ongoing call", ErrAlreadyInProgress},
	{"busy", ErrTargetBusy},
}

// ClassifyBackendMessage maps a backend failure string onto the call error
// taxonomy. Unknown messages are preserved verbatim under ErrUnknownBackend.
func ClassifyBackendMessage(message string) error {
	lower := strings.ToLower(message)
	for _, p := range backendMessagePatterns {
		if strings.Contains(lower, p.substr) {
			return errors.New(p.code, message)
		}
	}
	return errors.New(ErrUnknownBackend, message)
}
