package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aemery/chatwatch/internal/sender"
)

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <recipient> <text>...",
		Short: "Send a message through the automation surface",
		Long: `Send text to a recipient via Messages.app. The recipient must be in
strict international format: '+' followed by 1-15 digits.

Example:
  chatwatch send "+15551234567" Hello from chatwatch`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			s := sender.New(sender.OsascriptRunner{}, sender.Options{
				ChunkLimit:  cfg.ChunkLimit,
				MaxLength:   cfg.MaxLength,
				MinInterval: cfg.RateInterval(),
			})
			return s.Send(cmd.Context(), strings.Join(args[1:], " "), args[0])
		},
	}
}
