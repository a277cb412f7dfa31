package qrlogin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want StatusCode
	}{
		{"not scanned", "ptuiCB('66','0','','0','二维码未失效。(2069413706)', '')", StatusValid},
		{"verifying", "ptuiCB('67','0','','0','二维码认证中。(1283547264)', '')", StatusVerifying},
		{"expired", "ptuiCB('65','0','','0','二维码已失效。(1634268485)', '')", StatusExpired},
		{"success", "ptuiCB('0','0','https://ptlogin2.qzone.qq.com/check_sig?uin=1','0','登录成功！', 'nick')", StatusSuccess},
		{"verifying beats expired", "二维码已失效 二维码认证中", StatusVerifying},
		{"valid beats everything", "登录成功 二维码已失效 二维码认证中 二维码未失效", StatusValid},
		{"expired beats success", "登录成功 二维码已失效", StatusExpired},
		{"empty", "", StatusUnknown},
		{"garbage", "<html>captcha</html>", StatusUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.body))
		})
	}
}

func TestExtractRedirectURL(t *testing.T) {
	t.Parallel()

	got, ok := ExtractRedirectURL("ptuiCB('0','0','https://ptlogin2.qzone.qq.com/check_sig?pttype=1&uin=123&ptsigx=ab_c-d','0','登录成功！', 'nick')")
	require.True(t, ok)
	assert.Equal(t, "https://ptlogin2.qzone.qq.com/check_sig?pttype=1&uin=123&ptsigx=ab_c-d", got)

	got, ok = ExtractRedirectURL("...login succeeded...https://example.com/done...")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/done", got)

	// Trailing punctuation is not part of the URL.
	got, ok = ExtractRedirectURL("see http://example.com/a.")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/a", got)

	_, ok = ExtractRedirectURL("登录成功")
	assert.False(t, ok)
}

func TestStatusCode_TextRoundTrip(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(newStatus(StatusVerifying))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"Verifying","msg":"二维码认证中"}`, string(b))

	var st LoginStatus
	require.NoError(t, json.Unmarshal(b, &st))
	assert.Equal(t, StatusVerifying, st.Code)

	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.False(t, StatusValid.Terminal())
	assert.Equal(t, "StatusCode(42)", StatusCode(42).String())
}
