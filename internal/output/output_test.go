package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qzlogin/internal/credstore"
	"qzlogin/internal/qrlogin"
)

func testSnapshot() credstore.Snapshot {
	return credstore.Snapshot{
		SessionID: "sid",
		SavedAt:   time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC),
		Cookies: []credstore.Cookie{
			{Name: "p_skey", Value: "pskey-secret", Domain: "qzone.qq.com", Path: "/"},
			{Name: "uin", Value: "uin-secret", Domain: "qq.com", Path: "/"},
		},
	}
}

func TestStdPrinter_PrintSnapshot_RedactsValues(t *testing.T) {
	for _, asJSON := range []bool{false, true} {
		var out bytes.Buffer
		p := NewStdPrinter(&out, &bytes.Buffer{}, asJSON)

		require.NoError(t, p.PrintSnapshot(context.Background(), "cookies.json", testSnapshot()))

		s := out.String()
		assert.NotContains(t, s, "pskey-secret")
		assert.NotContains(t, s, "uin-secret")
		assert.Contains(t, s, "p_skey")
		assert.Contains(t, s, "cookies.json")
	}
}

func TestStdPrinter_PrintQRCode_HumanHidesSecret(t *testing.T) {
	qr := qrlogin.NewQRCode(".qrcode.png", "very-secret-qrsig")

	var human bytes.Buffer
	require.NoError(t, NewStdPrinter(&human, &bytes.Buffer{}, false).PrintQRCode(context.Background(), qr))
	assert.Contains(t, human.String(), ".qrcode.png")
	assert.NotContains(t, human.String(), "very-secret-qrsig")

	var machine bytes.Buffer
	require.NoError(t, NewStdPrinter(&machine, &bytes.Buffer{}, true).PrintQRCode(context.Background(), qr))
	assert.JSONEq(t,
		fmt.Sprintf(`{"image_path":".qrcode.png","qrsig":"very-secret-qrsig","ptqrtoken":%q}`, qr.Token),
		machine.String())
}

func TestStdPrinter_PrintStatus(t *testing.T) {
	st := qrlogin.LoginStatus{Code: qrlogin.StatusVerifying, Message: "二维码认证中"}

	var human bytes.Buffer
	require.NoError(t, NewStdPrinter(&human, &bytes.Buffer{}, false).PrintStatus(context.Background(), 2, st))
	assert.Equal(t, "[2] Verifying: 二维码认证中\n", human.String())

	var machine bytes.Buffer
	require.NoError(t, NewStdPrinter(&machine, &bytes.Buffer{}, true).PrintStatus(context.Background(), 2, st))
	assert.JSONEq(t, `{"attempt":2,"code":"Verifying","msg":"二维码认证中"}`, machine.String())
}

func TestStdPrinter_PrintError_UsesUserFacingMessage(t *testing.T) {
	var errOut bytes.Buffer
	p := NewStdPrinter(&bytes.Buffer{}, &errOut, false)

	err := fmt.Errorf("login: %w", &qrlogin.Error{Kind: qrlogin.KindNetwork, Err: errors.New("dial tcp 1.2.3.4:443: refused")})
	require.NoError(t, p.PrintError(context.Background(), err))

	assert.Equal(t, "error: "+qrlogin.ErrNetwork.Message()+"\n", errOut.String())
}
