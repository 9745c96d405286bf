package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aemery/chatwatch/internal/chatdb"
)

// RecentOptions holds flags for the recent command.
type RecentOptions struct {
	*RootOptions
	Limit  int
	Handle string
}

// NewRecentCommand creates the recent command.
func NewRecentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print recent messages from the store",
		Long: `Print the most recent messages in the Messages database, oldest first.

Example:
  chatwatch recent --limit 10
  chatwatch recent --handle "+15551234567"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecent(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum messages to print")
	cmd.Flags().StringVar(&opts.Handle, "handle", "", "only messages exchanged with this handle")

	return cmd
}

func runRecent(cmd *cobra.Command, opts *RecentOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	db, err := chatdb.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	var msgs []chatdb.Message
	if opts.Handle != "" {
		msgs, err = db.ForHandle(ctx, opts.Handle, opts.Limit)
	} else {
		msgs, err = db.MostRecent(ctx, opts.Limit, nil)
	}
	if err != nil {
		return err
	}

	for _, m := range msgs {
		fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
	}
	return nil
}

// formatMessage renders one message as a single display line.
func formatMessage(m chatdb.Message) string {
	direction := "<-"
	who := m.Sender
	if m.FromMe {
		direction = "->"
		who = "me"
	}
	if who == "" {
		who = "(unknown)"
	}

	text := m.Text
	if !m.HasText {
		text = "[no text]"
	}

	tag := ""
	if m.GroupChat {
		tag = " [group]"
	}
	return fmt.Sprintf("%s %s %s%s: %s",
		m.Time.Format("2006-01-02 15:04:05"), direction, who, tag, text)
}
