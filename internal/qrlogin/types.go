package qrlogin

import "fmt"

// QRCode is the handle returned by Issue and passed unchanged into Poll.
// Secret is the qrsig cookie value; treat it as a credential and never log it.
type QRCode struct {
	ImagePath string `json:"image_path"`
	Secret    string `json:"qrsig"`
	Token     string `json:"ptqrtoken"`
}

// NewQRCode rebuilds a handle from a known secret, deriving its token.
func NewQRCode(imagePath, secret string) QRCode {
	return QRCode{
		ImagePath: imagePath,
		Secret:    secret,
		Token:     formatToken(DeriveToken(secret)),
	}
}

// StatusCode classifies one status check.
type StatusCode int

const (
	StatusUnknown StatusCode = iota
	StatusValid
	StatusVerifying
	StatusExpired
	StatusSuccess
)

var statusNames = map[StatusCode]string{
	StatusUnknown:   "Unknown",
	StatusValid:     "Valid",
	StatusVerifying: "Verifying",
	StatusExpired:   "Expired",
	StatusSuccess:   "Success",
}

// Display strings as shown by the login page.
var statusMessages = map[StatusCode]string{
	StatusUnknown:   "二维码状态未知",
	StatusValid:     "二维码未失效",
	StatusVerifying: "二维码认证中",
	StatusExpired:   "二维码已失效",
	StatusSuccess:   "二维码认证成功",
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(%d)", int(s))
}

func (s StatusCode) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StatusCode) UnmarshalText(b []byte) error {
	for code, name := range statusNames {
		if name == string(b) {
			*s = code
			return nil
		}
	}
	return fmt.Errorf("unknown status code %q", string(b))
}

// Terminal reports whether polling should stop after this status.
func (s StatusCode) Terminal() bool {
	return s == StatusSuccess || s == StatusExpired
}

// LoginStatus is the result of one Poll. Credentials are never carried here:
// on Success they have already been written to the credential store.
type LoginStatus struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"msg"`
}

func newStatus(code StatusCode) LoginStatus {
	return LoginStatus{Code: code, Message: statusMessages[code]}
}
