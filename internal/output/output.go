package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"qzlogin/internal/credstore"
	"qzlogin/internal/errx"
	"qzlogin/internal/log"
	"qzlogin/internal/qrlogin"
)

// Printer renders user-facing output (human and/or JSON).
type Printer interface {
	PrintQRCode(ctx context.Context, qr qrlogin.QRCode) error
	PrintStatus(ctx context.Context, attempt int, st qrlogin.LoginStatus) error
	PrintSnapshot(ctx context.Context, location string, snap credstore.Snapshot) error
	PrintError(ctx context.Context, err error) error
}

// StdPrinter is a simple stdout/stderr printer.
type StdPrinter struct {
	Out  io.Writer
	Err  io.Writer
	JSON bool
}

func NewStdPrinter(out io.Writer, err io.Writer, asJSON bool) *StdPrinter {
	return &StdPrinter{Out: out, Err: err, JSON: asJSON}
}

// PrintQRCode shows where the image went. The JSON form carries the full
// handle (including qrsig) so another process can poll it; the human form
// does not print the secret.
func (p *StdPrinter) PrintQRCode(ctx context.Context, qr qrlogin.QRCode) error {
	if p.JSON {
		return json.NewEncoder(p.Out).Encode(qr)
	}
	if _, err := fmt.Fprintf(p.Out, "QR code: %s\n", qr.ImagePath); err != nil {
		return err
	}
	_, err := fmt.Fprintln(p.Out, "Scan it with the mobile app and confirm the login.")
	return err
}

func (p *StdPrinter) PrintStatus(ctx context.Context, attempt int, st qrlogin.LoginStatus) error {
	if p.JSON {
		return json.NewEncoder(p.Out).Encode(struct {
			Attempt int `json:"attempt,omitempty"`
			qrlogin.LoginStatus
		}{attempt, st})
	}
	if attempt > 0 {
		_, err := fmt.Fprintf(p.Out, "[%d] %s: %s\n", attempt, st.Code, st.Message)
		return err
	}
	_, err := fmt.Fprintf(p.Out, "%s: %s\n", st.Code, st.Message)
	return err
}

// PrintSnapshot lists the persisted cookies. Values are never printed.
func (p *StdPrinter) PrintSnapshot(ctx context.Context, location string, snap credstore.Snapshot) error {
	type redacted struct {
		Name    string    `json:"name"`
		Domain  string    `json:"domain"`
		Path    string    `json:"path"`
		Expires time.Time `json:"expires,omitzero"`
	}
	cookies := make([]redacted, 0, len(snap.Cookies))
	for _, c := range snap.Cookies {
		cookies = append(cookies, redacted{Name: c.Name, Domain: c.Domain, Path: c.Path, Expires: c.Expires})
	}

	if p.JSON {
		return json.NewEncoder(p.Out).Encode(struct {
			Location  string     `json:"location"`
			SessionID string     `json:"session_id"`
			SavedAt   time.Time  `json:"saved_at"`
			Cookies   []redacted `json:"cookies"`
		}{location, snap.SessionID, snap.SavedAt, cookies})
	}

	if _, err := fmt.Fprintf(p.Out, "location: %s\n", location); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(p.Out, "saved_at: %s\n", snap.SavedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(p.Out, "cookies: %d\n", len(cookies)); err != nil {
		return err
	}
	for _, c := range cookies {
		if _, err := fmt.Fprintf(p.Out, "  %s  %s%s  (set)\n", c.Name, c.Domain, c.Path); err != nil {
			return err
		}
	}
	return nil
}

func (p *StdPrinter) PrintError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	log.LogDebugWithFields("output", "Command failed", map[string]any{"error": err.Error()})
	_, werr := fmt.Fprintf(p.Err, "error: %s\n", errx.Display(err))
	return werr
}
