package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sydlexius/spinmatch/internal/release"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var flags queryFlags
	var noArt bool
	var releaseID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve partial record details to a catalog release",
		Example: `  spinmatch reconcile --catno "LITA 197"
  spinmatch reconcile --artist Khruangbin --album Mordechai --year 2020
  spinmatch reconcile --label-image label.jpg
  spinmatch reconcile --release-id 6f0b7d2e-8a1c-4a3e-b2c4-9d8e7f6a5b41`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			q, err := flags.query()
			if err != nil {
				return err
			}
			if noArt {
				cfg.Reconcile.Art = false
			}

			a, err := newApp(cmd.Context(), cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			logger := a.logger.With(slog.String("run_id", uuid.NewString()))
			var res *release.Result
			if releaseID != "" {
				res, err = a.pipeline.Select(cmd.Context(), releaseID)
			} else {
				res, err = a.pipeline.Reconcile(cmd.Context(), q)
			}
			if err != nil {
				logger.Debug("reconcile failed", slog.String("error", err.Error()))
				return err
			}
			logger.Debug("reconcile finished", slog.String("strategy", string(res.SourceStrategy)))
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&releaseID, "release-id", "", "Catalog release ID picked by hand; skips the search")
	cmd.Flags().BoolVar(&noArt, "no-art", false, "Skip cover art and artist portrait lookups")
	return cmd
}
