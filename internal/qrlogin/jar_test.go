package qrlogin

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionJar_RecordsAttributesAndReplaces(t *testing.T) {
	t.Parallel()

	jar, err := newSessionJar(func() time.Time { return fixedNow })
	require.NoError(t, err)

	u, _ := url.Parse("https://ptlogin2.qzone.qq.com/check_sig/step")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "p_skey", Value: "v1", Domain: ".qzone.qq.com", Path: "/", HttpOnly: true, Secure: true, SameSite: http.SameSiteNoneMode},
		{Name: "pt4_token", Value: "t1", MaxAge: 60},
	})
	jar.SetCookies(u, []*http.Cookie{
		{Name: "p_skey", Value: "v2", Domain: ".qzone.qq.com", Path: "/"},
	})

	got := jar.Snapshot()
	require.Len(t, got, 2)

	assert.Equal(t, "p_skey", got[0].Name)
	assert.Equal(t, "v2", got[0].Value)
	assert.Equal(t, "qzone.qq.com", got[0].Domain)
	assert.False(t, got[0].HostOnly)

	assert.Equal(t, "pt4_token", got[1].Name)
	assert.Equal(t, "ptlogin2.qzone.qq.com", got[1].Domain)
	assert.True(t, got[1].HostOnly)
	assert.Equal(t, "/check_sig", got[1].Path)
	assert.True(t, fixedNow.Add(time.Minute).Equal(got[1].Expires))

	// The inner jar still selects cookies for outgoing requests.
	sent := jar.Cookies(u)
	assert.Len(t, sent, 2)
}

func TestSessionJar_SkipsCookiesTheJarRejects(t *testing.T) {
	t.Parallel()

	jar, err := newSessionJar(func() time.Time { return fixedNow })
	require.NoError(t, err)

	u, _ := url.Parse("https://ssl.ptlogin2.qq.com/ptqrlogin")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "ok", Value: "1", Path: "/"},
		{Name: "parent", Value: "2", Domain: "qq.com", Path: "/"},
		{Name: "foreign", Value: "3", Domain: "example.com", Path: "/"},
		{Name: "psl", Value: "4", Domain: "com", Path: "/"},
		{Name: "sibling", Value: "5", Domain: "qzone.qq.com", Path: "/"},
	})

	got := jar.Snapshot()
	var names []string
	for _, c := range got {
		names = append(names, c.Name+"@"+c.Domain)
	}
	assert.Equal(t, []string{"ok@ssl.ptlogin2.qq.com", "parent@qq.com"}, names)

	sent := map[string]bool{}
	for _, c := range jar.Cookies(u) {
		sent[c.Name] = true
	}
	assert.Equal(t, map[string]bool{"ok": true, "parent": true}, sent)
}

func TestSessionJar_RecordsHostOnlyFlagOfLatestWrite(t *testing.T) {
	t.Parallel()

	jar, err := newSessionJar(func() time.Time { return fixedNow })
	require.NoError(t, err)

	u, _ := url.Parse("https://qq.com/")
	sub, _ := url.Parse("https://user.qzone.qq.com/")

	jar.SetCookies(u, []*http.Cookie{{Name: "uin", Value: "host", Path: "/"}})
	got := jar.Snapshot()
	require.Len(t, got, 1)
	assert.True(t, got[0].HostOnly)
	assert.Empty(t, jar.Cookies(sub), "host-only cookie must not reach subdomains")

	jar.SetCookies(u, []*http.Cookie{{Name: "uin", Value: "domain", Domain: "qq.com", Path: "/"}})
	got = jar.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "qq.com", got[0].Domain)
	assert.False(t, got[0].HostOnly)
	assert.Equal(t, "domain", got[0].Value)
	require.Len(t, jar.Cookies(sub), 1)
	assert.Equal(t, "domain", jar.Cookies(sub)[0].Value)
}

func TestCookieDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		host, attr string
		domain     string
		hostOnly   bool
		ok         bool
	}{
		{"ssl.ptlogin2.qq.com", "", "ssl.ptlogin2.qq.com", true, true},
		{"ssl.ptlogin2.qq.com", ".QQ.com", "qq.com", false, true},
		{"ssl.ptlogin2.qq.com", "ptlogin2.qq.com", "ptlogin2.qq.com", false, true},
		{"ssl.ptlogin2.qq.com", "example.com", "", false, false},
		{"ssl.ptlogin2.qq.com", "com", "", false, false},
		{"ssl.ptlogin2.qq.com", "qq.com.", "", false, false},
		{"ssl.ptlogin2.qq.com", "..qq.com", "", false, false},
		{"127.0.0.1", "", "127.0.0.1", true, true},
		{"127.0.0.1", "127.0.0.1", "127.0.0.1", true, true},
		{"127.0.0.1", "127.0.0.2", "127.0.0.1", true, false},
	}
	for _, tc := range cases {
		domain, hostOnly, ok := cookieDomain(tc.host, tc.attr)
		assert.Equal(t, tc.ok, ok, "%s / %q", tc.host, tc.attr)
		if tc.ok {
			assert.Equal(t, tc.domain, domain, "%s / %q", tc.host, tc.attr)
			assert.Equal(t, tc.hostOnly, hostOnly, "%s / %q", tc.host, tc.attr)
		}
	}
}

func TestSessionJar_DeletesExpiredCookies(t *testing.T) {
	t.Parallel()

	jar, err := newSessionJar(func() time.Time { return fixedNow })
	require.NoError(t, err)

	u, _ := url.Parse("https://qzone.qq.com/")
	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1", Path: "/"}, {Name: "b", Value: "2", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{
		{Name: "a", Value: "", Path: "/", MaxAge: -1},
		{Name: "b", Value: "", Path: "/", Expires: fixedNow.Add(-time.Hour)},
	})

	assert.Empty(t, jar.Snapshot())
}

func TestDefaultCookiePath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                 "/",
		"/":                "/",
		"/ptqrlogin":       "/",
		"/qzone/v5/x.html": "/qzone/v5",
		"relative":         "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, defaultCookiePath(in), in)
	}
}
