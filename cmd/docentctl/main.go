// Command docentctl is the admin tool for a docent kiosk: it reads content,
// probes the content service, exports prize claims and edits video pins
// directly against the kiosk's config and database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docentgo/pkg/config"
	"docentgo/pkg/content"
	"docentgo/pkg/db"
	"docentgo/pkg/request"
	"docentgo/pkg/store"
	"docentgo/pkg/version"
)

const defaultConfigPath = "configs/docent.yaml"

// env is what every subcommand works against. Opened lazily so --help stays cheap.
type env struct {
	configPath string
	cfg        *config.Config
	db         *db.DB
	store      *store.SQLiteStore
}

func (e *env) config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	e.cfg = cfg
	return cfg, nil
}

func (e *env) openStore() (*store.SQLiteStore, error) {
	if e.store != nil {
		return e.store, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	d, err := db.Init(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.db = d
	e.store = store.NewSQLiteStore(d)
	return e.store, nil
}

// contentClient reads without the response cache, so answers reflect the service now.
func (e *env) contentClient() (*content.Client, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	rc := request.New(nil, request.ClientConfig{
		Retries:   1,
		Timeout:   cfg.Content.FetchTimeout.D(),
		RateLimit: cfg.Request.RateLimit,
	})
	return content.NewClient(rc, cfg.Content, nil, nil), nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "docentctl",
		Short:         "Administer a docent kiosk",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", defaultConfigPath, "config file")

	root.AddCommand(
		newThemesCmd(e),
		newProbeCmd(e),
		newExportCmd(e),
		newOverridesCmd(e),
	)
	return root
}

func main() {
	_ = godotenv.Load()

	e := &env{}
	err := newRootCmd(e).Execute()
	e.close()
	if err != nil {
		os.Exit(1)
	}
}
