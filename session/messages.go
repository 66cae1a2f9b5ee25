package session

import "github.com/sobhagya/callcore/internal/constants"

// Every not-allowed reason gets its own user-facing message; a generic
// "something went wrong" is never shown for a classified refusal.
var reasonMessages = map[constants.NotAllowedReason]string{
	constants.ReasonInsufficientBalance: "You don't have enough balance for this call. Please recharge your wallet.",
	constants.ReasonAlreadyInCall:       "You already have a call in progress.",
	constants.ReasonOffline:             "The astrologer is currently offline. Please try again later.",
	constants.ReasonAudioNotAllowed:     "Audio calls are not enabled for this astrologer.",
}

const unknownReasonMessage = "The call could not be connected."

// MessageFor returns the user-facing text for a not-allowed reason.
func MessageFor(reason constants.NotAllowedReason) string {
	if msg, ok := reasonMessages[reason]; ok {
		return msg
	}
	return unknownReasonMessage
}
