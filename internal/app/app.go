package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qzlogin/internal/credstore"
	"qzlogin/internal/errx"
	"qzlogin/internal/log"
	"qzlogin/internal/output"
	"qzlogin/internal/qrlogin"
	"qzlogin/internal/viewer"
)

const (
	kDefaultPollInterval = 3 * time.Second
	kDefaultPollAttempts = 10

	kLogComponent = "app"
)

// App wires the login client to the CLI. The polling loop lives here, not in
// qrlogin: cadence, attempt limits and deadlines are caller policy.
type App struct {
	QRLogin     qrlogin.Client
	Credentials credstore.Store
	Viewer      viewer.Runner
	Output      output.Printer

	// CredentialsLocation is shown by ShowCookies (file path or redis key).
	CredentialsLocation string
}

type LoginOptions struct {
	Interval    time.Duration
	MaxAttempts int
	// Timeout bounds the whole loop; zero means no deadline beyond ctx.
	Timeout time.Duration

	Open      bool
	ViewerCmd string
}

type StatusOptions struct {
	Secret    string
	ImagePath string
}

func New(deps App) *App {
	return &deps
}

// Login issues a QR code and polls it until the login succeeds, the code
// expires, the attempts run out or the deadline passes.
func (a *App) Login(ctx context.Context, opts LoginOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = kDefaultPollInterval
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = kDefaultPollAttempts
	}

	loopCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	qr, err := a.QRLogin.Issue(loopCtx)
	if err != nil {
		return err
	}
	if err := a.Output.PrintQRCode(loopCtx, qr); err != nil {
		return err
	}

	if opts.Open && a.Viewer != nil {
		if err := a.Viewer.Open(loopCtx, opts.ViewerCmd, qr.ImagePath); err != nil {
			// The image is on disk either way; the user can open it by hand.
			log.LogWarnWithFields(kLogComponent, "Could not open QR code viewer", map[string]any{
				"error": err.Error(),
			})
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		st, err := a.QRLogin.Poll(loopCtx, qr)
		if err != nil {
			return err
		}
		if err := a.Output.PrintStatus(loopCtx, attempt, st); err != nil {
			return err
		}

		if st.Code.Terminal() {
			if st.Code == qrlogin.StatusExpired {
				return errx.ErrQRCodeExpired
			}
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-loopCtx.Done():
			timer.Stop()
			return loopCtx.Err()
		case <-timer.C:
		}
	}
	return errx.Attempts(maxAttempts)
}

// IssueQRCode fetches a code and prints its handle without polling.
func (a *App) IssueQRCode(ctx context.Context) error {
	qr, err := a.QRLogin.Issue(ctx)
	if err != nil {
		return err
	}
	return a.Output.PrintQRCode(ctx, qr)
}

// CheckStatus runs a single status check for a previously issued code.
func (a *App) CheckStatus(ctx context.Context, opts StatusOptions) error {
	secret := strings.TrimSpace(opts.Secret)
	if secret == "" {
		return fmt.Errorf("qrsig is required")
	}
	st, err := a.QRLogin.Poll(ctx, qrlogin.NewQRCode(opts.ImagePath, secret))
	if err != nil {
		return err
	}
	return a.Output.PrintStatus(ctx, 0, st)
}

// ShowCookies prints the persisted snapshot with values redacted.
func (a *App) ShowCookies(ctx context.Context) error {
	snap, err := a.Credentials.Load(ctx)
	if err != nil {
		return err
	}
	return a.Output.PrintSnapshot(ctx, a.CredentialsLocation, snap)
}
