package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"kvconsole/config"
	"kvconsole/kvapi"
	"kvconsole/transport"
)

var log = logging.MustGetLogger("kvconsole.cmd")

var (
	cfgFile string
	// flagCfg collects command-line values; zero fields fall back to the
	// config file and then to the defaults.
	flagCfg config.Config
	cfg     config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kvconsole",
	Short: "Operator console for an HTTP key-value store",
	Long: `kvconsole browses, searches and edits the entries of a key-value store
that speaks the /list, /search, /get, /set and /delete HTTP API.

Run "kvconsole serve" for the web console, or use the entry commands
directly from a terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", config.DefaultPath, "Configuration file")
	pf.StringVarP(&flagCfg.Backend.URL, "backend", "b", "", "Base URL of the key-value store API (default http://localhost:8080)")
	pf.StringVar(&flagCfg.Backend.Timeout, "timeout", "", "Timeout for each backend request (default 10s)")
	pf.StringVar(&flagCfg.Backend.Token, "token", "", "Bearer token sent to the backend")
	pf.StringVar(&flagCfg.Log.Level, "log-level", "", "Log level: debug, info, notice, warning, error (default info)")
}

func loadConfig(cmd *cobra.Command) error {
	file, err := config.Load(cfgFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return err
		}
		file = config.Config{}
	}

	cfg, err = config.Merge(flagCfg, file)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging(cfg.Log.Level)
	log.Debugf("Using backend %s", cfg.Backend.URL)

	return nil
}

func setupLogging(level string) {
	format := logging.MustStringFormatter(`%{time:15:04:05.000} %{module} %{level:.4s} %{message}`)

	backend := logging.NewLogBackend(os.Stderr, "", 0)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))

	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.INFO
	}
	leveled.SetLevel(lvl, "")

	logging.SetBackend(leveled)
}

func newTransport() (*transport.Client, error) {
	tc, err := cfg.Transport()
	if err != nil {
		return nil, err
	}

	t, err := transport.New(tc)
	if err != nil {
		return nil, err
	}
	if cfg.Backend.Token != "" {
		t.WithRequestInterceptor(transport.BearerToken(cfg.Backend.Token))
	}

	return t, nil
}

func newAPI() (*kvapi.Client, error) {
	t, err := newTransport()
	if err != nil {
		return nil, err
	}

	return kvapi.New(t), nil
}
