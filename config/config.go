package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/imdario/mergo"
	"github.com/op/go-logging"

	"kvconsole/store"
	"kvconsole/transport"
)

var log = logging.MustGetLogger("kvconsole.config")

const DefaultPath = "kvconsole.toml"

type Config struct {
	Backend Backend `toml:"backend"`
	Console Console `toml:"console"`
	Stub    Stub    `toml:"stub"`
	Log     Log     `toml:"log"`
}

type Backend struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
	// Token is sent as a bearer token when set.
	Token              string `toml:"token"`
	CAFile             string `toml:"ca-file"`
	CertFile           string `toml:"cert-file"`
	KeyFile            string `toml:"key-file"`
	InsecureSkipVerify bool   `toml:"insecure-skip-verify"`
}

type Console struct {
	Listen string `toml:"listen"`
	// SessionIdle is how long a browser session survives without requests.
	SessionIdle string `toml:"session-idle"`
}

type Stub struct {
	Listen string `toml:"listen"`
	Engine string `toml:"engine"`
	Path   string `toml:"path"`
}

type Log struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Backend: Backend{
			URL:     "http://localhost:8080",
			Timeout: transport.DefaultTimeout.String(),
		},
		Console: Console{Listen: "127.0.0.1:3000", SessionIdle: "24h"},
		Stub: Stub{
			Listen: "127.0.0.1:8080",
			Engine: store.EngineMemory,
			Path:   "kvstub.db",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a TOML file. A missing file is reported with an error wrapping
// fs.ErrNotExist so callers can decide whether it matters.
func Load(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	for _, k := range md.Undecoded() {
		log.Warningf("Ignoring unknown config key %s in %s", k.String(), path)
	}

	return cfg, nil
}

// Merge layers flags over file over defaults. Only zero values are filled,
// so a flag left at its zero value never hides the file.
func Merge(flags, file Config) (Config, error) {
	cfg := flags
	if err := mergo.Merge(&cfg, file); err != nil {
		return Config{}, err
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend url %q must be an absolute http(s) URL", c.Backend.URL)
	}

	if _, err := c.Timeout(); err != nil {
		return err
	}

	if _, err := c.SessionIdle(); err != nil {
		return err
	}

	switch c.Stub.Engine {
	case store.EngineMemory, store.EngineBolt, store.EngineBadger:
	default:
		return fmt.Errorf("unknown stub engine %q", c.Stub.Engine)
	}

	if _, err := logging.LogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}

	return nil
}

func (c Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 0, fmt.Errorf("backend timeout %q: %w", c.Backend.Timeout, err)
	}
	if d <= 0 {
		return 0, errors.New("backend timeout must be positive")
	}

	return d, nil
}

func (c Config) Transport() (transport.Config, error) {
	timeout, err := c.Timeout()
	if err != nil {
		return transport.Config{}, err
	}

	return transport.Config{
		BaseURL: c.Backend.URL,
		Timeout: timeout,
		TLS: transport.TLSConfig{
			CAFile:             c.Backend.CAFile,
			CertFile:           c.Backend.CertFile,
			KeyFile:            c.Backend.KeyFile,
			InsecureSkipVerify: c.Backend.InsecureSkipVerify,
		},
	}, nil
}

func (c Config) SessionIdle() (time.Duration, error) {
	d, err := time.ParseDuration(c.Console.SessionIdle)
	if err != nil {
		return 0, fmt.Errorf("console session-idle %q: %w", c.Console.SessionIdle, err)
	}
	if d <= 0 {
		return 0, errors.New("console session-idle must be positive")
	}

	return d, nil
}
