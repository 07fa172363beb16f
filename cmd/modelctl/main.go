// Command modelctl operates on the durable model store: bulk import, export,
// listing, deletion, blank model creation and validation.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modelcore/internal/config"
	"modelcore/internal/core"
	"modelcore/internal/logging"
	"modelcore/internal/metrics"
	"modelcore/internal/reasoner"
	"modelcore/internal/schema"
	"modelcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	root, a := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "modelctl: %v\n", err)
		return 1
	}
	return 0
}

// app holds what every subcommand needs once the root pre-run has wired it.
type app struct {
	stdout io.Writer

	envFile  string
	driver   string
	actor    string
	logLevel string

	cfg      config.Config
	log      *zap.Logger
	registry *core.UndoAwareRegistry
}

func (a *app) meta() domain.Metadata {
	return domain.Metadata{ActorID: a.actor}
}

func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout}
	root := &cobra.Command{
		Use:           "modelctl",
		Short:         "Manage stored annotation models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading MODELCORE_* variables")
	flags.StringVar(&a.driver, "driver", "", "storage driver override (memory, sqlite, postgres, badger, blob)")
	flags.StringVar(&a.actor, "actor", "", "operator identity recorded on changes")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override")

	root.AddCommand(
		newImportCommand(a),
		newExportCommand(a),
		newListCommand(a),
		newDeleteCommand(a),
		newCreateCommand(a),
		newValidateCommand(a),
	)
	return root, a
}

func (a *app) open(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.driver != "" {
		cfg.Storage.Driver = a.driver
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	a.log, err = logging.NewZapLogger(cfg.LogLevel, cfg.Environment == "local")
	if err != nil {
		return err
	}
	logger := logging.NewZap(a.log)

	tbox, err := loadTBox(cfg)
	if err != nil {
		return err
	}
	store, err := core.OpenModelStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	a.registry = core.NewUndoAwareRegistry(tbox, store,
		core.WithLogger(logger),
		core.WithIDPrefix(cfg.ModelIDPrefix),
		core.WithReasonerFactory(reasoner.NewFactory(reasoner.WithStrict(cfg.StrictReasoner))),
		core.WithMetricsRecorder(metrics.NewRecorder()),
	)
	a.log.Debug("store opened", zap.String("driver", cfg.Storage.Driver), zap.String("tbox", string(tbox.IRI())))
	return nil
}

func loadTBox(cfg config.Config) (*domain.TBox, error) {
	if cfg.TBoxPath == "" {
		return schema.Empty(domain.IRI(cfg.TBoxIRI)), nil
	}
	return schema.Load(cfg.TBoxPath)
}

func (a *app) close() error {
	if a.log != nil {
		defer func() { _ = a.log.Sync() }()
	}
	if a.registry == nil {
		return nil
	}
	a.registry.Close()
	err := a.registry.Store().Close()
	a.registry = nil
	return err
}
