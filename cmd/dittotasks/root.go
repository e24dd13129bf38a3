package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittotasks/internal/logger"
	"github.com/marmos91/dittotasks/pkg/config"
	"github.com/marmos91/dittotasks/pkg/document"
)

// Version is set at build time.
var Version = "dev"

// App carries global flags and the loaded configuration to every command.
type App struct {
	ConfigPath   string
	DatabasePath string
	NoColor      bool

	// Fs is the filesystem holding the local document. Nil means the OS
	// filesystem.
	Fs afero.Fs

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time

	cfg   *config.Config
	files *document.FileStore
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dittotasks",
		Short: "Encrypted task list sync",
		Long: `DittoTasks keeps a task list (projects, tasks and tags) in a local file
and synchronizes it with a server. The most recently modified copy wins;
every message on the wire is encrypted with a shared password.`,
		Version:      Version,
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Write a default configuration file
  dittotasks init

  # Start the server
  dittotasks serve

  # Edit the local task list
  dittotasks project add Inbox
  dittotasks task add Inbox "Write release notes" --due 2026-11-01

  # Sync once, or keep syncing
  dittotasks sync
  dittotasks watch --on-file-change
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittotasks/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.DatabasePath, "db", "", "Local document file (overrides client.database_path)")
	cmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newProjectCmd(app))
	cmd.AddCommand(newTaskCmd(app))
	cmd.AddCommand(newTagCmd(app))

	return cmd
}

// setup loads the configuration and configures logging. Commands that must
// run without a valid configuration (init) skip it.
func (app *App) setup(cmd *cobra.Command) error {
	if app.NoColor {
		color.NoColor = true
	}
	if app.Fs == nil {
		app.Fs = afero.NewOsFs()
	}
	if app.Now == nil {
		app.Now = time.Now
	}
	app.files = document.NewFileStore(app.Fs)

	if cmd.Annotations["skipConfig"] == "true" {
		return nil
	}

	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return err
	}
	if app.DatabasePath != "" {
		cfg.Client.DatabasePath = app.DatabasePath
	}
	app.cfg = cfg

	return logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// dbPath returns the local document file.
func (app *App) dbPath() string {
	return app.cfg.Client.DatabasePath
}

// read loads the local document (empty if the file does not exist yet) and
// passes it to f.
func (app *App) read(f func(db *document.Database) error) error {
	doc, err := app.files.LoadOrNew(app.dbPath())
	if err != nil {
		return err
	}
	var ferr error
	doc.Read(func(db *document.Database) { ferr = f(db) })
	return ferr
}

// modify applies f to the local document and saves it. Nothing is written
// when f fails.
func (app *App) modify(f func(db *document.Database) error) error {
	doc, err := app.files.LoadOrNew(app.dbPath())
	if err != nil {
		return err
	}
	var ferr error
	doc.Modify(func(db *document.Database) { ferr = f(db) })
	if ferr != nil {
		return ferr
	}
	return app.files.Save(app.dbPath(), doc)
}

var (
	nameColor  = color.New(color.Bold)
	dimColor   = color.New(color.FgHiBlack)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
)

func printOK(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, okColor.Sprintf(format, a...))
}
