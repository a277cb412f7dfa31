package errx

import (
	"errors"
	"fmt"
)

var (
	// ErrQRCodeExpired ends a login loop whose code timed out on the server.
	ErrQRCodeExpired = errors.New("qr code expired, request a new one")

	// ErrAttemptsExhausted ends a login loop that never reached a terminal status.
	ErrAttemptsExhausted = errors.New("qr code was not confirmed in time")
)

// UserFacing is implemented by errors that carry a message safe to show
// without the underlying cause.
type UserFacing interface {
	Message() string
}

// Display returns the text to show a user for err: the first user-facing
// message in the chain, else err.Error().
func Display(err error) string {
	if err == nil {
		return ""
	}
	var uf UserFacing
	if errors.As(err, &uf) {
		return uf.Message()
	}
	return err.Error()
}

// Attempts wraps ErrAttemptsExhausted with the number of polls made.
func Attempts(n int) error {
	return fmt.Errorf("%w after %d checks", ErrAttemptsExhausted, n)
}
