package qrlogin

import (
	"regexp"
	"strings"
)

// Markers the status endpoint embeds in its ptuiCB(...) callback body.
const (
	kMarkerNotScanned = "二维码未失效"
	kMarkerVerifying  = "二维码认证中"
	kMarkerExpired    = "二维码已失效"
	kMarkerSucceeded  = "登录成功"
)

var redirectURLPattern = regexp.MustCompile(`https?://[-A-Za-z0-9+&@#/%?=~_|!:,.;]+[-A-Za-z0-9+&@#/%=~_|]`)

// Classify maps a status response body to a status code. Markers are checked
// in a fixed order and the first hit wins, so a body mentioning both the
// verifying and expired markers is Verifying.
//
// StatusSuccess here only means the success marker is present; Poll still has
// to complete the redirect and persist cookies before reporting it.
func Classify(body string) StatusCode {
	switch {
	case strings.Contains(body, kMarkerNotScanned):
		return StatusValid
	case strings.Contains(body, kMarkerVerifying):
		return StatusVerifying
	case strings.Contains(body, kMarkerExpired):
		return StatusExpired
	case strings.Contains(body, kMarkerSucceeded):
		return StatusSuccess
	default:
		return StatusUnknown
	}
}

// ExtractRedirectURL returns the first absolute http(s) URL in body.
func ExtractRedirectURL(body string) (string, bool) {
	u := redirectURLPattern.FindString(body)
	return u, u != ""
}
