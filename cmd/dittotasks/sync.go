package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotasks/pkg/client"
	"github.com/marmos91/dittotasks/pkg/config"
)

// newClient builds a sync client from the loaded configuration.
func (app *App) newClient(address string) (*client.Client, error) {
	password, err := config.ReadPassword(app.Fs, &app.cfg.Security)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no password configured: set DITTOTASKS_SECURITY_PASSWORD or copy the server's password file to %s", app.cfg.Security.PasswordFile)
	}
	if err != nil {
		return nil, err
	}

	if address == "" {
		address = app.cfg.Client.Address
	}
	return client.New(client.Config{
		Address:        address,
		Password:       password,
		DialTimeout:    app.cfg.Client.DialTimeout,
		RequestTimeout: app.cfg.Client.RequestTimeout,
	}, app.Fs), nil
}

func printResult(w io.Writer, r client.Result) {
	if r.Err != nil {
		fmt.Fprintln(w, errorColor.Sprintf("Sync failed (%s): %v", client.KindOf(r.Err), r.Err))
		return
	}
	printOK(w, "Sync complete: %s", r.Outcome)
}

func newSyncCmd(app *App) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local document with the server once",
		Long: `Compare the local document with the server's copy. A strictly newer
server copy is downloaded and replaces the local file; otherwise the local
document is uploaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := app.newClient(address)
			if err != nil {
				return err
			}

			_, outcome, err := cl.SyncFile(cmd.Context(), app.dbPath())
			printResult(cmd.OutOrStdout(), client.Result{Outcome: outcome, Err: err})
			return err
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Server address host:port (overrides client.address)")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	var (
		url          string
		onFileChange bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the local document in sync until interrupted",
		Long: `Sync once, then listen for change notifications on the server's
WebSocket endpoint and sync whenever the server holds a newer document.
With --on-file-change, edits to the local file are uploaded as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := app.newClient("")
			if err != nil {
				return err
			}
			if url == "" {
				url = app.cfg.Client.WebSocketURL
			}

			doc, err := cl.Files().LoadOrNew(app.dbPath())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			watcher := cl.NewWatcher(doc, client.WatchConfig{
				URL:       url,
				Path:      app.dbPath(),
				WatchFile: onFileChange,
				OnSync:    func(r client.Result) { printResult(w, r) },
			})
			fmt.Fprintln(w, dimColor.Sprintf("Watching %s (Ctrl+C to stop)", url))

			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "WebSocket endpoint (overrides client.websocket_url)")
	cmd.Flags().BoolVar(&onFileChange, "on-file-change", false, "Also sync when the local file changes")
	return cmd
}
