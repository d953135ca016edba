package cmd

import (
	"github.com/codegangsta/negroni"
	"github.com/spf13/cobra"

	"kvconsole/store"
	"kvconsole/stub"
	"kvconsole/web"
)

// stubCmd represents the stub command
var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run a development backend",
	Long: `kvconsole stub command.

Serves the key-value HTTP API from a local store so the console can be
tried without a real backend. Not meant for production data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open[string](cfg.Stub.Engine, cfg.Stub.Path)
		if err != nil {
			return err
		}
		defer s.Close()

		n := negroni.New(negroni.NewRecovery(), web.NewLogger())
		n.UseHandler(stub.NewRouter(s))

		log.Noticef("Starting %s stub backend at %s", cfg.Stub.Engine, cfg.Stub.Listen)
		return listenAndServe(cfg.Stub.Listen, n)
	},
}

func init() {
	rootCmd.AddCommand(stubCmd)

	stubCmd.Flags().StringVarP(&flagCfg.Stub.Listen, "listen", "l", "", "Address to serve the API on (default 127.0.0.1:8080)")
	stubCmd.Flags().StringVarP(&flagCfg.Stub.Engine, "engine", "e", "", "Store engine: memory, bolt or badger (default memory)")
	stubCmd.Flags().StringVarP(&flagCfg.Stub.Path, "path", "p", "", "Bolt file or badger directory (default kvstub.db)")
}
