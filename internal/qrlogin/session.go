package qrlogin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"qzlogin/internal/credstore"
	"qzlogin/internal/log"
)

// Session binds one QR code to its own cookie jar. Jars are never shared
// between sessions: the cookies a status check accumulates belong to the
// qrsig that produced them.
//
// Concurrent Poll calls on one Session are coalesced into a single request.
// Once a Session has persisted its cookies it is finished; further polls
// report Success without touching the network or the store again.
type Session struct {
	// ID correlates log lines of one session. It is not sent anywhere.
	ID string

	qr     QRCode
	client *HttpClient
	jar    *sessionJar
	http   *http.Client

	group singleflight.Group

	flightMu sync.Mutex
	flight   *pollFlight

	mu        sync.Mutex
	persisted bool
}

// pollFlight is the context shared by the callers of one coalesced poll. It
// is cancelled when the last waiting caller leaves, not when the first one
// does.
type pollFlight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewSession creates a session for qr with an empty jar.
func (c *HttpClient) NewSession(qr QRCode) (*Session, error) {
	jar, err := newSessionJar(c.Now)
	if err != nil {
		return nil, newError(KindStatusCheck, "create cookie jar: %w", err)
	}
	return &Session{
		ID:     uuid.NewString(),
		qr:     qr,
		client: c,
		jar:    jar,
		http:   c.httpClient(jar),
	}, nil
}

// QRCode returns the handle this session polls for.
func (s *Session) QRCode() QRCode { return s.qr }

// Cookies returns a copy of everything the session's jar has accumulated.
func (s *Session) Cookies() []credstore.Cookie { return s.jar.Snapshot() }

// Poll performs one status check. A caller that joins an in-flight poll
// waits on its own ctx: its cancellation only abandons its own wait, and
// the shared request is cancelled once every waiting caller has gone.
func (s *Session) Poll(ctx context.Context) (LoginStatus, error) {
	if err := ctx.Err(); err != nil {
		return LoginStatus{}, &Error{Kind: KindStatusCheck, Err: err}
	}

	f := s.join(ctx)
	ch := s.group.DoChan(f.key, func() (any, error) {
		return s.poll(f.ctx)
	})

	select {
	case res := <-ch:
		s.leave(f)
		if res.Err != nil {
			return LoginStatus{}, res.Err
		}
		return res.Val.(LoginStatus), nil
	case <-ctx.Done():
		s.leave(f)
		return LoginStatus{}, &Error{Kind: KindStatusCheck, Err: ctx.Err()}
	}
}

func (s *Session) join(ctx context.Context) *pollFlight {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	if s.flight == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		// A fresh key per flight: a new caller never joins a call whose
		// context was already cancelled.
		s.flight = &pollFlight{ctx: fctx, cancel: cancel}
		s.flight.key = fmt.Sprintf("poll-%p", s.flight)
	}
	s.flight.waiters++
	return s.flight
}

func (s *Session) leave(f *pollFlight) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flight == f {
		s.flight = nil
	}
}

func (s *Session) poll(ctx context.Context) (LoginStatus, error) {
	s.mu.Lock()
	done := s.persisted
	s.mu.Unlock()
	if done {
		return newStatus(StatusSuccess), nil
	}

	if err := ctx.Err(); err != nil {
		return LoginStatus{}, &Error{Kind: KindStatusCheck, Err: err}
	}
	if err := validateCookieValue(s.qr.Secret); err != nil {
		return LoginStatus{}, newError(KindStatusCheck, "build %s cookie header: %w", kCookieQRSig, err)
	}

	base, err := httpsEndpoint(s.client.QRLoginBaseURL, "")
	if err != nil {
		return LoginStatus{}, &Error{Kind: KindStatusCheck, Err: err}
	}
	endpoint := base + fmt.Sprintf(kQRLoginPathFormat, s.qr.Token, s.client.Now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return LoginStatus{}, newError(KindStatusCheck, "create status request: %w", err)
	}
	req.Header.Set(kHeaderUserAgent, s.client.UserAgent)
	// Secret material: never log the header.
	req.AddCookie(&http.Cookie{Name: kCookieQRSig, Value: s.qr.Secret})

	resp, err := s.http.Do(req)
	if err != nil {
		return LoginStatus{}, newError(KindStatusCheck, "status request failed: %w", err)
	}
	body, err := readLimited(resp.Body, kMaxStatusBodyBytes)
	resp.Body.Close()
	if err != nil {
		return LoginStatus{}, newError(KindStatusCheck, "read status response: %w", err)
	}

	content := string(body)
	code := Classify(content)
	log.LogTraceWithFields(kLogComponent, "Status checked", map[string]any{
		"session_id": s.ID,
		"http":       resp.StatusCode,
		"status":     code.String(),
	})
	if code != StatusSuccess {
		return newStatus(code), nil
	}

	target, ok := ExtractRedirectURL(content)
	if !ok {
		// Success without a completion target cannot be finalized.
		log.LogWarnWithFields(kLogComponent, "Success marker without redirect URL", map[string]any{
			"session_id": s.ID,
		})
		return newStatus(StatusUnknown), nil
	}

	if err := s.follow(ctx, target); err != nil {
		return LoginStatus{}, err
	}
	if err := s.persist(ctx); err != nil {
		return LoginStatus{}, err
	}
	return newStatus(StatusSuccess), nil
}

// follow requests the completion URL so the server can set the
// authentication cookies into the session jar. The body is discarded.
func (s *Session) follow(ctx context.Context, target string) error {
	if err := requireHTTPS(target); err != nil {
		return newError(KindStatusCheck, "follow login redirect: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return newError(KindStatusCheck, "create redirect request: %w", err)
	}
	req.Header.Set(kHeaderUserAgent, s.client.UserAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return newError(KindStatusCheck, "redirect request failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, kMaxStatusBodyBytes))
	resp.Body.Close()

	log.LogDebugWithFields(kLogComponent, "Login redirect followed", map[string]any{
		"session_id": s.ID,
		"host":       req.URL.Host,
		"http":       resp.StatusCode,
	})
	return nil
}

func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persisted {
		return nil
	}

	snap := credstore.Snapshot{
		SessionID: s.ID,
		SavedAt:   s.client.Now().UTC(),
		Cookies:   s.jar.Snapshot(),
	}
	if err := s.client.Store.Save(ctx, snap); err != nil {
		return newError(KindStatusCheck, "persist cookies: %w", err)
	}
	s.persisted = true

	log.LogInfoWithFields(kLogComponent, "Session cookies persisted", map[string]any{
		"session_id": s.ID,
		"cookies":    len(snap.Cookies),
		"names":      snap.Names(),
	})
	return nil
}

// validateCookieValue rejects values that cannot travel in a Cookie header
// unmodified. net/http would otherwise silently drop the offending bytes.
func validateCookieValue(v string) error {
	if v == "" {
		return fmt.Errorf("empty value")
	}
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b <= 0x20 || b >= 0x7f || b == '"' || b == ';' || b == '\\' {
			return fmt.Errorf("invalid byte %#x at offset %d", b, i)
		}
	}
	return nil
}
