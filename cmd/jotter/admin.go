package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jotter/internal/api"
	"jotter/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminGCBlobsCmd(cfg, jsonOutput))
	return cmd
}

func newAdminGCBlobsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		dryRun    bool
		apply     bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "gc-blobs",
		Short: "Reclaim stored blobs no attachment references",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply && !dryRun {
				dryRun = true
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				req := api.BlobGCRequest{DryRun: !apply, BatchSize: batchSize}
				resp, err := client.AdminGCBlobs(cmd.Context(), req, apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				mode := "dry run"
				if !resp.DryRun {
					mode = "applied"
				}
				if err := writePlain("%s (%s): candidates=%d deleted=%d failed=%d reclaimed=%s\n",
					mode, resp.Backend, resp.CandidateCount, resp.DeletedCount, resp.FailedCount,
					humanize.IBytes(uint64(resp.ReclaimedBytes))); err != nil {
					return err
				}
				for _, key := range resp.Keys {
					if err := writePlain("  %s\n", key); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be reclaimed without deleting")
	cmd.Flags().BoolVar(&apply, "apply", false, "delete unreferenced blobs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "apply-mode batch size (default: server attachment gc batch size)")
	return cmd
}
