package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/importer"
	"github.com/rog/backend/internal/repository"
)

func importCommand(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load associations or points",
	}
	cmd.AddCommand(importAssociationsCommand(cc), importPointsCommand(cc))
	return cmd
}

func importAssociationsCommand(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lds <file.json>",
		Short: "Upsert associations from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			items, skipped, err := importer.ReadAssociationsJSON(f)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := cc.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := repository.NewPgAssociationRepository()
			written, err := importer.WriteChunked(ctx, items, repository.BatchSize, func(ctx context.Context, chunk []domain.Association) error {
				return repo.UpsertBatch(ctx, pool, chunk)
			})
			if err != nil {
				return fmt.Errorf("after %d associations: %w", written, err)
			}
			cc.logger.Info("associations imported", "written", written, "skipped", skipped)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d associations, skipped %d\n", written, skipped)
			return nil
		},
	}
}

func importPointsCommand(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "points <file.xlsx> [ldId]",
		Short: "Upsert points from a workbook, optionally for one association only",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			onlyLD := ""
			if len(args) == 2 {
				onlyLD = strings.TrimSpace(args[1])
				if err := domain.ValidateAssociationID(onlyLD); err != nil {
					return err
				}
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := importer.ReadPointsWorkbook(f, onlyLD)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := cc.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := repository.NewPgPointRepository()
			written, err := importer.WriteChunked(ctx, res.Points, repository.BatchSize, func(ctx context.Context, chunk []domain.Point) error {
				return repo.UpsertBatch(ctx, pool, chunk)
			})
			if err != nil {
				return fmt.Errorf("after %d points: %w", written, err)
			}
			cc.logger.Info("points imported", "written", written, "skipped", res.Skipped, "associations", res.AssociationIDs)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d points for %s, skipped %d\n",
				written, strings.Join(res.AssociationIDs, ", "), res.Skipped)
			return nil
		},
	}
}
