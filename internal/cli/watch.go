package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aemery/chatwatch/internal/chatdb"
	"github.com/aemery/chatwatch/internal/config"
	"github.com/aemery/chatwatch/internal/cursor"
	"github.com/aemery/chatwatch/internal/watcher"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the store and print new inbound messages",
		Long: `Watch the Messages database for changes and print each batch of new
inbound messages. Runs until interrupted. The cursor persists across runs,
so restarting never reprints messages already seen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			return runWatch(cmd, cfg)
		},
	}
}

func runWatch(cmd *cobra.Command, cfg config.Config) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cursors := cursor.NewStore(cfg.CursorPath)

	for {
		db, err := chatdb.Open(cfg.StorePath)
		if err != nil {
			return err
		}

		w := watcher.New(db, cursors, watcher.Options{Settle: cfg.Settle()})
		w.Subscribe(func(msgs []chatdb.Message) {
			for _, m := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
			}
		})
		if err := w.Start(); err != nil {
			db.Close()
			return err
		}

		select {
		case sig := <-sigChan:
			slog.Info("shutting down", "signal", sig)
			w.Stop()
			db.Close()
			return nil

		case <-w.Replaced():
			// The store file was swapped underneath the watch. Restart on
			// the new file instead of monitoring a dead inode.
			slog.Warn("store file replaced, restarting watch")
			w.Stop()
			db.Close()
			time.Sleep(time.Second)
		}
	}
}
