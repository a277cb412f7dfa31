package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	kConfigFileMode = 0o600

	kEnvQRShowURL  = "QZLOGIN_QRSHOW_URL"
	kEnvQRLoginURL = "QZLOGIN_QRLOGIN_URL"

	DefaultLoginBaseURL = "https://ssl.ptlogin2.qq.com"
	DefaultQRCodePath   = ".qrcode.png"
	DefaultCookiesPath  = "cookies.json"
	DefaultPollInterval = 3 * time.Second
	DefaultPollAttempts = 10
	DefaultPollTimeout  = 2 * time.Minute
	DefaultRedisKey     = "qzlogin:cookies"
	BackendFile         = "file"
	BackendRedis        = "redis"
)

// Config is the user-level configuration, stored as YAML.
type Config struct {
	// QRCodePath is where the QR image is written on every issue.
	QRCodePath string `yaml:"qrcode_path"`

	// UserAgent overrides the browser User-Agent sent to the login service.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Viewer is the command used by `login --open` (default: platform opener).
	Viewer string `yaml:"viewer,omitempty"`

	Endpoints   Endpoints   `yaml:"endpoints"`
	Poll        Poll        `yaml:"poll"`
	Credentials Credentials `yaml:"credentials"`
}

// Endpoints are scheme+host bases; request paths and queries are fixed.
type Endpoints struct {
	QRShow  string `yaml:"qr_show"`
	QRLogin string `yaml:"qr_login"`
}

// Poll is the cadence the CLI uses when it drives the login loop.
type Poll struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Credentials selects where the session cookies are persisted.
type Credentials struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path,omitempty"`
	RedisAddr string `yaml:"redis_addr,omitempty"`
	RedisKey  string `yaml:"redis_key,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		QRCodePath: DefaultQRCodePath,
		Endpoints: Endpoints{
			QRShow:  DefaultLoginBaseURL,
			QRLogin: DefaultLoginBaseURL,
		},
		Poll: Poll{
			Interval:    DefaultPollInterval,
			MaxAttempts: DefaultPollAttempts,
			Timeout:     DefaultPollTimeout,
		},
		Credentials: Credentials{
			Backend: BackendFile,
			Path:    DefaultCookiesPath,
		},
	}
}

// ApplyDefaults fills zero fields from Default.
func (c *Config) ApplyDefaults() {
	d := Default()
	if strings.TrimSpace(c.QRCodePath) == "" {
		c.QRCodePath = d.QRCodePath
	}
	if strings.TrimSpace(c.Endpoints.QRShow) == "" {
		c.Endpoints.QRShow = d.Endpoints.QRShow
	}
	if strings.TrimSpace(c.Endpoints.QRLogin) == "" {
		c.Endpoints.QRLogin = d.Endpoints.QRLogin
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = d.Poll.Interval
	}
	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = d.Poll.MaxAttempts
	}
	if c.Poll.Timeout <= 0 {
		c.Poll.Timeout = d.Poll.Timeout
	}
	if strings.TrimSpace(c.Credentials.Backend) == "" {
		c.Credentials.Backend = d.Credentials.Backend
	}
	if c.Credentials.Backend == BackendFile && strings.TrimSpace(c.Credentials.Path) == "" {
		c.Credentials.Path = d.Credentials.Path
	}
	if c.Credentials.Backend == BackendRedis && strings.TrimSpace(c.Credentials.RedisKey) == "" {
		c.Credentials.RedisKey = DefaultRedisKey
	}
}

// ApplyEnv lets the environment override endpoint bases.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(kEnvQRShowURL)); v != "" {
		c.Endpoints.QRShow = v
	}
	if v := strings.TrimSpace(os.Getenv(kEnvQRLoginURL)); v != "" {
		c.Endpoints.QRLogin = v
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Credentials.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Credentials.Path) == "" {
			return fmt.Errorf("credentials.path is required for the file backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Credentials.RedisAddr) == "" {
			return fmt.Errorf("credentials.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("credentials.backend %q is not one of %s|%s", c.Credentials.Backend, BackendFile, BackendRedis)
	}
	return nil
}

// Store loads and saves config. Implementations must protect the file at
// rest (mode 0600).
type Store interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

// FileStore is a filesystem-backed config store (e.g. ~/.config/qzlogin/config.yaml).
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the file as-is. A missing file yields an error wrapping
// os.ErrNotExist; callers decide whether to fall back to Default.
func (s *FileStore) Load(ctx context.Context) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	fi, err := os.Stat(s.Path)
	if err != nil {
		return Config{}, fmt.Errorf("stat config %s: %w", s.Path, err)
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm()&0o077 != 0 {
		return Config{}, fmt.Errorf("config %s has insecure permissions %#o (want 0600)", s.Path, fi.Mode().Perm())
	}

	b, err := os.ReadFile(s.Path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", s.Path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", s.Path, err)
	}
	return cfg, nil
}

func (s *FileStore) Save(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(s.Path, b, kConfigFileMode); err != nil {
		return fmt.Errorf("write config %s: %w", s.Path, err)
	}
	// WriteFile keeps the mode of an existing file; tighten it explicitly.
	if err := os.Chmod(s.Path, kConfigFileMode); err != nil {
		return fmt.Errorf("chmod config %s: %w", s.Path, err)
	}
	return nil
}

// LoadOrDefault loads the config, falling back to Default when the file does
// not exist, then applies defaults and env overrides.
func LoadOrDefault(ctx context.Context, store Store) (Config, error) {
	cfg, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
		cfg = Default()
	}
	cfg.ApplyDefaults()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
