package media

import "strings"

// Lossy data-channel hiccups are a known benign artifact of the transport:
// they must never tear a call down or reach the user. Everything else is
// fatal to the call.
var benignFragments = []string{
	"datachannel",
	"lossy",
}

// Benign reports whether err is transport noise to swallow.
func Benign(err error) bool {
	if err == nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range benignFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
