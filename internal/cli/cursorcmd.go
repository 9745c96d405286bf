package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aemery/chatwatch/internal/cursor"
)

// NewCursorCommand creates the cursor command group for support tooling.
func NewCursorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect or reset the ingestion cursor",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the persisted cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			v, ok, err := cursor.NewStore(cfg.CursorPath).Get()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no cursor persisted")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear the persisted cursor",
		Long: `Clear the persisted cursor. The next watch start re-initializes it to
the store's current maximum row id, so history is still never replayed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			return cursor.NewStore(cfg.CursorPath).Reset()
		},
	})

	return cmd
}
