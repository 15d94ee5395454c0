package llm

import (
	"errors"
	"strings"
)

// ErrFatalAPI marks provider errors that no retry will fix: auth, billing
// and quota problems. The server logs these louder than transient faults.
var ErrFatalAPI = errors.New("fatal API error")

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication failed",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal provider errors with ErrFatalAPI; other errors
// (and nil) pass through untouched.
func wrapFatalError(err error) error {
	if err == nil || !isFatalAPIError(err) {
		return err
	}
	return errors.Join(ErrFatalAPI, err)
}
