package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustgate/trustgate/internal/admin"
	"github.com/trustgate/trustgate/internal/canon"
	"github.com/trustgate/trustgate/internal/config"
	"github.com/trustgate/trustgate/internal/mcpclient"
	"github.com/trustgate/trustgate/internal/scheduler"
	"github.com/trustgate/trustgate/internal/snapshotter"
	"github.com/trustgate/trustgate/internal/store"
	"github.com/trustgate/trustgate/internal/telemetry"
)

var approveCmd = &cobra.Command{
	Use:   "approve <service-name>",
	Short: "Approve a service's latest snapshot",
	Long: `Promote a service's latest snapshot to USER_APPROVED and enable it,
without going through the admin HTTP API. Useful for scripted approval
workflows (CI pipelines reviewing a diff before promoting it).`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.SetDevDefaults()
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	var filter canon.VolatileFilter
	if cfg.Canon.FilterExpr != "" {
		celFilter, err := canon.NewCELVolatileFilter(cfg.Canon.FilterExpr)
		if err != nil {
			return fmt.Errorf("compile canon.filter_expr: %w", err)
		}
		filter = celFilter
	}

	provider := telemetry.NewNoop()
	client := mcpclient.New()
	snap := snapshotter.New(client, provider.Tracer("trustgate.approve"), filter, discardSlogger())

	adminService, err := admin.New(st, snap, scheduler.NewSignal(), cfg.Polling.MinCheckFrequency, cfg.BaseURL, discardSlogger())
	if err != nil {
		return fmt.Errorf("init admin service: %w", err)
	}

	approved, err := adminService.ApproveLatest(ctx, name)
	if err != nil {
		return fmt.Errorf("approve %s: %w", name, err)
	}

	fmt.Printf("approved %s: hash=%s status=%s\n", name, approved.Hash, approved.ApprovedStatus)
	return nil
}
