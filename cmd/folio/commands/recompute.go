package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfolio/backend/internal/contracts"
)

// recomputeCmd represents the recompute command
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute analytics",
	Long: `Runs the analytics pipeline. Without flags every account with
holdings is processed; with --view-type/--view-id a single view is.

The dependency ledger skips units whose inputs did not change, so
repeating this command is cheap.

Example:
  go run ./cmd/folio recompute
  go run ./cmd/folio recompute --view-type account --view-id A1
  go run ./cmd/folio recompute --view-type group --view-id family`,
	RunE: runRecompute,
}

var (
	recomputeViewType string
	recomputeViewID   string
)

func init() {
	rootCmd.AddCommand(recomputeCmd)

	recomputeCmd.Flags().StringVar(&recomputeViewType, "view-type", "", "view type (account|group)")
	recomputeCmd.Flags().StringVar(&recomputeViewID, "view-id", "", "view identifier")
}

func runRecompute(cmd *cobra.Command, args []string) error {
	if (recomputeViewType == "") != (recomputeViewID == "") {
		return fmt.Errorf("--view-type and --view-id must be set together")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	if recomputeViewID != "" {
		vt := contracts.ViewType(recomputeViewType)
		if vt != contracts.ViewTypeAccount && vt != contracts.ViewTypeGroup {
			return fmt.Errorf("invalid view type %q (valid: account, group)", recomputeViewType)
		}

		result, err := a.orch.RecomputeView(ctx, vt, recomputeViewID, asOf)
		if err != nil {
			return fmt.Errorf("recompute %s/%s: %w", vt, recomputeViewID, err)
		}
		return printJSON(result)
	}

	views, err := a.orch.AccountViews(ctx, asOf)
	if err != nil {
		return fmt.Errorf("list views: %w", err)
	}
	if len(views) == 0 {
		fmt.Println("No active accounts")
		return nil
	}

	batch, err := a.orch.RecomputeBatch(ctx, views, asOf)
	if err != nil {
		return fmt.Errorf("recompute batch: %w", err)
	}

	fmt.Printf("Views: %d  updated: %d  skipped: %d  failed: %d\n",
		len(batch.Views), batch.Updated, batch.Skipped, batch.Failed)
	if batch.Failed > 0 {
		return fmt.Errorf("%d views failed", batch.Failed)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
