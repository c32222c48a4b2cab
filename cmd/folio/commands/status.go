package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfolio/backend/internal/contracts"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show computation currency for a view",
	Long: `Compares the stored ledger entries of a view against the current
input hashes and reports, per computation, whether the stored result
is still current.

Example:
  go run ./cmd/folio status --view-type account --view-id A1`,
	RunE: runStatus,
}

var (
	statusViewType string
	statusViewID   string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusViewType, "view-type", "account", "view type (account|group)")
	statusCmd.Flags().StringVar(&statusViewID, "view-id", "", "view identifier")
	_ = statusCmd.MarkFlagRequired("view-id")
}

func runStatus(cmd *cobra.Command, args []string) error {
	vt := contracts.ViewType(statusViewType)
	if vt != contracts.ViewTypeAccount && vt != contracts.ViewTypeGroup {
		return fmt.Errorf("invalid view type %q (valid: account, group)", statusViewType)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	st, err := a.orch.Status(ctx, vt, statusViewID, asOf)
	if err != nil {
		return fmt.Errorf("status %s/%s: %w", vt, statusViewID, err)
	}
	return printJSON(st)
}
