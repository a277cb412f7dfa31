package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"qzlogin/internal/app"
	"qzlogin/internal/config"
	"qzlogin/internal/credstore"
	"qzlogin/internal/log"
	"qzlogin/internal/output"
	"qzlogin/internal/qrlogin"
	"qzlogin/internal/viewer"
)

const (
	kEnvQzloginConfigPath = "QZLOGIN_CONFIG_PATH"
)

func main() {
	os.Exit(realMain(os.Args))
}

func validateArgs(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing command")
	}

	switch args[1] {
	case "login":
	case "qrcode":
	case "status":
	case "cookies":
	case "config":
	case "help", "-h", "--help":
		break
	default:
		return fmt.Errorf("unknown command: %s", args[1])
	}

	return nil
}

func realMain(args []string) int {
	if err := validateArgs(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		usage(os.Stderr)
		return 2
	}

	if args[1] == "help" || args[1] == "-h" || args[1] == "--help" {
		usage(os.Stdout)
		return 0
	}

	ctx := context.Background()
	pr := output.NewStdPrinter(os.Stdout, os.Stderr, false)

	cfgPath := strings.TrimSpace(os.Getenv(kEnvQzloginConfigPath))
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: resolve config path: %v\n", err)
			return 1
		}
	}
	cfgStore := config.NewFileStore(cfgPath)

	if args[1] == "config" {
		if err := runConfig(ctx, cfgStore, pr, args[2:]); err != nil {
			_ = pr.PrintError(ctx, err)
			return 1
		}
		return 0
	}

	cfg, err := config.LoadOrDefault(ctx, cfgStore)
	if err != nil {
		_ = pr.PrintError(ctx, err)
		return 1
	}

	creds, location, closeCreds := newCredentialStore(cfg.Credentials)
	defer closeCreds()

	lc := qrlogin.NewHttpClient(qrlogin.HttpClientOptions{
		QRShowBaseURL:  cfg.Endpoints.QRShow,
		QRLoginBaseURL: cfg.Endpoints.QRLogin,
		UserAgent:      cfg.UserAgent,
		ImagePath:      cfg.QRCodePath,
		Store:          creds,
	})

	a := app.New(app.App{
		QRLogin:             lc,
		Credentials:         creds,
		Viewer:              viewer.NewProcessRunner(),
		Output:              pr,
		CredentialsLocation: location,
	})

	var runErr error
	switch args[1] {
	case "login":
		runErr = runLogin(ctx, a, cfg, pr, args[2:])
	case "qrcode":
		runErr = runQRCode(ctx, a, pr, args[2:])
	case "status":
		runErr = runStatus(ctx, a, cfg, pr, args[2:])
	case "cookies":
		runErr = runCookies(ctx, a, pr, args[2:])
	}

	if runErr == nil {
		return 0
	}
	_ = pr.PrintError(ctx, runErr)
	return 1
}

// newCredentialStore builds the configured snapshot backend and returns a
// description of where snapshots go.
func newCredentialStore(c config.Credentials) (credstore.Store, string, func()) {
	if c.Backend == config.BackendRedis {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		log.LogDebugWithFields("main", "Using redis credential store", map[string]any{
			"addr": c.RedisAddr,
			"key":  c.RedisKey,
		})
		return credstore.NewRedisStore(rdb, c.RedisKey), "redis://" + c.RedisAddr + "/" + c.RedisKey, func() { _ = rdb.Close() }
	}
	return credstore.NewFileStore(c.Path), c.Path, func() {}
}

func runLogin(ctx context.Context, a *app.App, cfg config.Config, pr *output.StdPrinter, argv []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var open bool
	var asJSON bool
	opts := app.LoginOptions{
		Interval:    cfg.Poll.Interval,
		MaxAttempts: cfg.Poll.MaxAttempts,
		Timeout:     cfg.Poll.Timeout,
		ViewerCmd:   cfg.Viewer,
	}
	fs.BoolVar(&open, "open", false, "open the QR image in a viewer")
	fs.DurationVar(&opts.Interval, "interval", opts.Interval, "delay between status checks")
	fs.IntVar(&opts.MaxAttempts, "attempts", opts.MaxAttempts, "maximum number of status checks")
	fs.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "overall deadline for the login")
	fs.BoolVar(&asJSON, "json", false, "emit JSON output")

	if err := fs.Parse(argv); err != nil {
		return err
	}
	pr.JSON = asJSON
	opts.Open = open

	return a.Login(ctx, opts)
}

func runQRCode(ctx context.Context, a *app.App, pr *output.StdPrinter, argv []string) error {
	fs := flag.NewFlagSet("qrcode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var asJSON bool
	fs.BoolVar(&asJSON, "json", false, "emit JSON output (includes qrsig)")

	if err := fs.Parse(argv); err != nil {
		return err
	}
	pr.JSON = asJSON

	return a.IssueQRCode(ctx)
}

func runStatus(ctx context.Context, a *app.App, cfg config.Config, pr *output.StdPrinter, argv []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var secret string
	var asJSON bool
	fs.StringVar(&secret, "qrsig", "", "qrsig of a previously issued QR code")
	fs.BoolVar(&asJSON, "json", false, "emit JSON output")

	if err := fs.Parse(argv); err != nil {
		return err
	}
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("status: missing --qrsig")
	}
	pr.JSON = asJSON

	return a.CheckStatus(ctx, app.StatusOptions{Secret: secret, ImagePath: cfg.QRCodePath})
}

func runCookies(ctx context.Context, a *app.App, pr *output.StdPrinter, argv []string) error {
	if len(argv) < 1 || argv[0] != "show" {
		return fmt.Errorf("cookies: expected subcommand show")
	}

	fs := flag.NewFlagSet("cookies show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var asJSON bool
	fs.BoolVar(&asJSON, "json", false, "emit JSON output")
	if err := fs.Parse(argv[1:]); err != nil {
		return err
	}
	pr.JSON = asJSON

	err := a.ShowCookies(ctx)
	if errors.Is(err, credstore.ErrNotFound) {
		return fmt.Errorf("no saved cookies (run: qzlogin login)")
	}
	return err
}

func runConfig(ctx context.Context, store *config.FileStore, pr *output.StdPrinter, argv []string) error {
	if len(argv) < 1 {
		return fmt.Errorf("config: missing subcommand (init|show)")
	}
	switch argv[0] {
	case "init":
		return runConfigInit(ctx, store, pr, argv[1:])
	case "show":
		return runConfigShow(ctx, store, pr, argv[1:])
	default:
		return fmt.Errorf("config: unknown subcommand %q (expected init|show)", argv[0])
	}
}

func runConfigInit(ctx context.Context, store *config.FileStore, pr *output.StdPrinter, argv []string) error {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := config.Default()
	var force bool
	fs.StringVar(&cfg.QRCodePath, "qrcode-path", cfg.QRCodePath, "where to write the QR image")
	fs.StringVar(&cfg.Credentials.Path, "cookies-path", cfg.Credentials.Path, "where to write the cookie snapshot")
	fs.StringVar(&cfg.Viewer, "viewer", "", "command used to open the QR image")
	fs.BoolVar(&force, "force", false, "overwrite existing config file")

	if err := fs.Parse(argv); err != nil {
		return err
	}

	if _, err := os.Stat(store.Path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", store.Path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config %s: %w", store.Path, err)
	}

	if err := store.Save(ctx, cfg); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(pr.Out, "wrote config: %s\n", store.Path)
	return nil
}

func runConfigShow(ctx context.Context, store *config.FileStore, pr *output.StdPrinter, argv []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(argv); err != nil {
		return err
	}

	cfg, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config not found at %s (run: qzlogin config init)", store.Path)
		}
		return err
	}
	cfg.ApplyDefaults()

	_, _ = fmt.Fprintf(pr.Out, "path: %s\n", store.Path)
	_, _ = fmt.Fprintf(pr.Out, "qrcode_path: %s\n", cfg.QRCodePath)
	_, _ = fmt.Fprintf(pr.Out, "endpoints.qr_show: %s\n", cfg.Endpoints.QRShow)
	_, _ = fmt.Fprintf(pr.Out, "endpoints.qr_login: %s\n", cfg.Endpoints.QRLogin)
	_, _ = fmt.Fprintf(pr.Out, "poll: every %s, up to %d checks, timeout %s\n", cfg.Poll.Interval, cfg.Poll.MaxAttempts, cfg.Poll.Timeout)
	_, _ = fmt.Fprintf(pr.Out, "credentials.backend: %s\n", cfg.Credentials.Backend)
	switch cfg.Credentials.Backend {
	case config.BackendRedis:
		_, _ = fmt.Fprintf(pr.Out, "credentials.redis: %s (key %s)\n", cfg.Credentials.RedisAddr, cfg.Credentials.RedisKey)
	default:
		_, _ = fmt.Fprintf(pr.Out, "credentials.path: %s\n", cfg.Credentials.Path)
	}
	return nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "qzlogin - QZone QR code login in the terminal")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  qzlogin <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  login   [--open] [--interval 3s] [--attempts 10] [--timeout 2m]")
	fmt.Fprintln(w, "  qrcode  issue a QR code without polling")
	fmt.Fprintln(w, "  status  --qrsig <value>   check a previously issued code once")
	fmt.Fprintln(w, "  cookies show")
	fmt.Fprintln(w, "  config  init|show")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Use --json on subcommands for JSON output")
	fmt.Fprintln(w, "  - Cookie values are stored unencrypted; keep the snapshot private")
}
