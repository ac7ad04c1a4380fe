package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-txscope/internal/application"
	"github.com/sanosuguru/go-txscope/internal/infrastructure/database"
	"github.com/sanosuguru/go-txscope/internal/pkg/execctx"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

func newProbeCmd(configPath *string) *cobra.Command {
	var source string

	probe := &cobra.Command{
		Use:   "probe",
		Short: "データベースの疎通を確認し、必要なら記録を1件保存する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := execctx.WithScope(cmd.Context())

			coord, db, err := openCoordinator(ctx, cfg, metrics.NewDiscard())
			if err != nil {
				return err
			}
			defer db.Close()
			defer coord.Shutdown()

			md, err := coord.DatabaseMetaData(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "driver=%s version=%s open=%d in_use=%d idle=%d\n",
				md.DriverName, md.ServerVersion, md.Stats.OpenConnections, md.Stats.InUse, md.Stats.Idle)

			if source == "" {
				return nil
			}
			svc := application.NewHeartbeatService(coord, database.NewHeartbeatRepository())
			h, err := svc.Record(ctx, source)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "recorded id=%d scope=%s\n", h.ID, h.ScopeID)
			return nil
		},
	}
	probe.Flags().StringVar(&source, "record", "", "記録する送信元（省略時は記録しない）")
	return probe
}
