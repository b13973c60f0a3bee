package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newPriceCommand(ctx *commandContext) *cobra.Command {
	var flags queryFlags
	var releaseID string
	var currency string

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Summarize marketplace prices for a release",
		Example: `  spinmatch price --release-id 7592261
  spinmatch price --barcode 656605145512 --currency EUR`,
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
			if currency != "" {
				if len(strings.TrimSpace(currency)) != 3 {
					return fmt.Errorf("invalid currency %q: want a three-letter code", currency)
				}
				cfg.Marketplace.Currency = strings.ToUpper(strings.TrimSpace(currency))
			}

			a, err := newApp(cmd.Context(), cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			logger := a.logger.With(slog.String("run_id", uuid.NewString()))
			summary, err := a.pricer.PriceRelease(cmd.Context(), q, releaseID)
			if err != nil {
				logger.Debug("price failed", slog.String("error", err.Error()))
				return err
			}
			logger.Debug("price finished", slog.String("release_id", summary.ReleaseID))
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&releaseID, "release-id", "", "Marketplace release ID; skips the search")
	cmd.Flags().StringVar(&currency, "currency", "", "Three-letter summary currency (default from config)")
	return cmd
}
