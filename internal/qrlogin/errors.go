package qrlogin

import "fmt"

// Kind is the closed set of failure classes an operation can report.
type Kind int

const (
	// KindNetwork: the QR request could not be sent or the transport failed.
	KindNetwork Kind = iota + 1
	// KindDecode: the QR response body could not be read.
	KindDecode
	// KindCredentialExtraction: the response carried no qrsig cookie.
	KindCredentialExtraction
	// KindFileIO: the QR image could not be written.
	KindFileIO
	// KindStatusCheck: anything failing during a status check, the redirect
	// request or credential persistence.
	KindStatusCheck
)

var kindMessages = map[Kind]string{
	KindNetwork:              "network request failed, could not fetch the QR code",
	KindDecode:               "could not decode the response, could not fetch the QR code",
	KindCredentialExtraction: "could not read the qrsig cookie, could not fetch the QR code",
	KindFileIO:               "file read/write failed, could not save the QR code",
	KindStatusCheck:          "failed to check the QR code scan status",
}

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindCredentialExtraction:
		return "credential_extraction"
	case KindFileIO:
		return "file_io"
	case KindStatusCheck:
		return "status_check"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrNetwork              = &Error{Kind: KindNetwork}
	ErrDecode               = &Error{Kind: KindDecode}
	ErrCredentialExtraction = &Error{Kind: KindCredentialExtraction}
	ErrFileIO               = &Error{Kind: KindFileIO}
	ErrStatusCheck          = &Error{Kind: KindStatusCheck}
)

// Error is returned by Issue and Poll. Message is safe to show to a user;
// Err holds the underlying cause for logs.
type Error struct {
	Kind Kind
	Err  error
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Message is the fixed user-facing text for the error's kind.
func (e *Error) Message() string {
	if msg, ok := kindMessages[e.Kind]; ok {
		return msg
	}
	return "qr login failed"
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return e.Message() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
