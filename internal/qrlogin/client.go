package qrlogin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qzlogin/internal/credstore"
	"qzlogin/internal/log"
)

const (
	kDefaultLoginBaseURL = "https://ssl.ptlogin2.qq.com"

	// Query strings are sent verbatim; the login service keys on their exact form.
	kQRShowPath         = "/ptqrshow?appid=549000912&e=2&l=M&s=3&d=72&v=4&t=0.8692955245720428&daid=5&pt_3rd_aid=0"
	kQRLoginPathFormat  = "/ptqrlogin?u1=https%%3A%%2F%%2Fqzs.qq.com%%2Fqzone%%2Fv5%%2Floginsucc.html%%3Fpara%%3Dizone&ptqrtoken=%s&ptredirect=0&h=1&t=1&g=1&from_ui=1&ptlang=2052&action=0-0-%d&js_ver=20032614&js_type=1&login_sig=&pt_uistyle=40&aid=549000912&daid=5&"
	kDefaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
	kDefaultImagePath   = ".qrcode.png"
	kDefaultCookiesPath = "cookies.json"

	kHeaderUserAgent = "User-Agent"
	kCookieQRSig     = "qrsig"

	kMaxImageBytes      = 4 << 20
	kMaxStatusBodyBytes = 1 << 20
	kMaxRedirects       = 10

	kLogComponent = "qrlogin"
)

// Client is the boundary exposed to the CLI (or any other shell).
type Client interface {
	Issue(ctx context.Context) (QRCode, error)
	Poll(ctx context.Context, qr QRCode) (LoginStatus, error)
}

// HttpClient talks to the QR login endpoints over net/http.
type HttpClient struct {
	QRShowBaseURL  string
	QRLoginBaseURL string
	UserAgent      string
	ImagePath      string

	// Http is a template: each request path copies it and installs its own
	// redirect policy and, for polls, a session-scoped jar.
	Http  *http.Client
	Store credstore.Store

	Now func() time.Time
}

type HttpClientOptions struct {
	QRShowBaseURL  string
	QRLoginBaseURL string
	UserAgent      string
	ImagePath      string
	Http           *http.Client
	Store          credstore.Store
	Now            func() time.Time
}

func NewHttpClient(opts HttpClientOptions) *HttpClient {
	c := &HttpClient{
		QRShowBaseURL:  opts.QRShowBaseURL,
		QRLoginBaseURL: opts.QRLoginBaseURL,
		UserAgent:      opts.UserAgent,
		ImagePath:      opts.ImagePath,
		Http:           opts.Http,
		Store:          opts.Store,
		Now:            opts.Now,
	}
	if c.Http == nil {
		c.Http = &http.Client{}
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = kDefaultUserAgent
	}
	if strings.TrimSpace(c.ImagePath) == "" {
		c.ImagePath = kDefaultImagePath
	}
	if c.Store == nil {
		c.Store = credstore.NewFileStore(kDefaultCookiesPath)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Issue requests a fresh QR code, writes the image to ImagePath and returns
// the handle bound to the qrsig cookie the server set alongside it.
func (c *HttpClient) Issue(ctx context.Context) (QRCode, error) {
	if err := ctx.Err(); err != nil {
		return QRCode{}, &Error{Kind: KindNetwork, Err: err}
	}

	endpoint, err := httpsEndpoint(c.QRShowBaseURL, kQRShowPath)
	if err != nil {
		return QRCode{}, &Error{Kind: KindNetwork, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return QRCode{}, newError(KindNetwork, "create qrcode request: %w", err)
	}
	req.Header.Set(kHeaderUserAgent, c.UserAgent)

	resp, err := c.httpClient(nil).Do(req)
	if err != nil {
		return QRCode{}, newError(KindNetwork, "qrcode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return QRCode{}, newError(KindNetwork, "qrcode request: status %d", resp.StatusCode)
	}

	var secret string
	for _, ck := range resp.Cookies() {
		if strings.HasPrefix(ck.Name, kCookieQRSig) {
			secret = ck.Value
		}
	}
	if secret == "" {
		return QRCode{}, newError(KindCredentialExtraction, "no %s cookie in qrcode response", kCookieQRSig)
	}

	image, err := readLimited(resp.Body, kMaxImageBytes)
	if err != nil {
		return QRCode{}, newError(KindDecode, "read qrcode image: %w", err)
	}

	if err := writeImage(c.ImagePath, image); err != nil {
		return QRCode{}, &Error{Kind: KindFileIO, Err: err}
	}

	qr := NewQRCode(c.ImagePath, secret)
	log.LogDebugWithFields(kLogComponent, "QR code issued", map[string]any{
		"image_path":  qr.ImagePath,
		"image_bytes": len(image),
	})
	return qr, nil
}

// Poll performs one status check for qr in a fresh session. It never loops
// or sleeps; the caller owns cadence and retries.
func (c *HttpClient) Poll(ctx context.Context, qr QRCode) (LoginStatus, error) {
	s, err := c.NewSession(qr)
	if err != nil {
		return LoginStatus{}, err
	}
	return s.Poll(ctx)
}

// httpClient copies the template client with an https-only redirect policy
// and the given jar. A nil jar still overrides any jar on the template so
// no cookies leak between sessions.
func (c *HttpClient) httpClient(jar http.CookieJar) *http.Client {
	hc := *c.Http
	hc.Jar = jar
	hc.CheckRedirect = requireHTTPSRedirect
	return &hc
}

func requireHTTPSRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= kMaxRedirects {
		return fmt.Errorf("stopped after %d redirects", kMaxRedirects)
	}
	if req.URL.Scheme != "https" {
		return fmt.Errorf("refusing non-https redirect to %s://%s", req.URL.Scheme, req.URL.Host)
	}
	return nil
}

func httpsEndpoint(baseURL, pathAndQuery string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = kDefaultLoginBaseURL
	}
	if err := requireHTTPS(base); err != nil {
		return "", err
	}
	return base + pathAndQuery, nil
}

func requireHTTPS(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("refusing non-https url %s://%s", u.Scheme, u.Host)
	}
	return nil
}

// readLimited reads r to EOF and fails instead of truncating when r holds
// more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return b, nil
}

func writeImage(path string, image []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create image dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return fmt.Errorf("write qrcode image %s: %w", path, err)
	}
	return nil
}
