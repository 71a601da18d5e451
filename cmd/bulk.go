package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alapierre/go-eims-client/eims/config"
	"github.com/alapierre/go-eims-client/eims/lifecycle"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

func bulkSubmitCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-submit <document-id>...",
		Short: "Register invoices as one bulk batch; results arrive on the callback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app) error {
				conversation, err := a.reconciler.SubmitBatch(ctx, args)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), conversation)
				return err
			})(cmd.Context())
		},
	}
}

func bulkCancelCmd(cfg func() *config.Config) *cobra.Command {
	var reason, remark string
	cmd := &cobra.Command{
		Use:   "bulk-cancel <document-id>...",
		Short: "Cancel several verified documents with one reason code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs := make([]lifecycle.CancelRequest, 0, len(args))
			for _, id := range args {
				reqs = append(reqs, lifecycle.CancelRequest{DocumentID: id, ReasonCode: reason, Remark: remark})
			}
			return withApp(cfg, func(ctx context.Context, a *app) error {
				res, err := a.engine.BulkCancel(ctx, reqs)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, id := range res.Cancelled {
					fmt.Fprintf(out, "cancelled %s\n", id)
				}
				for _, id := range res.Skipped {
					fmt.Fprintf(out, "skipped   %s\n", id)
				}
				failed := make([]string, 0, len(res.Failed))
				for id := range res.Failed {
					failed = append(failed, id)
				}
				sort.Strings(failed)
				for _, id := range failed {
					fmt.Fprintf(out, "failed    %s: %v\n", id, res.Failed[id])
				}
				if len(failed) > 0 {
					return errors.Errorf("%d of %d cancellations failed", len(failed), len(args))
				}
				return nil
			})(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "cancellation reason code (1-4)")
	cmd.Flags().StringVarP(&remark, "remark", "m", "", "free text remark")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func sweepCmd(cfg func() *config.Config) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove bulk mappings whose callback never arrived",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app) error {
				if ttl == 0 {
					ttl = a.cfg.MappingTTL
				}
				n, err := a.reconciler.SweepStale(ctx, ttl)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d mappings\n", n)
				return err
			})(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "mapping age limit, defaults to EIMS_MAPPING_TTL")
	return cmd
}

func expiredCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "expired",
		Short: "List documents that were never registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app) error {
				now := time.Now().UTC()
				report, err := a.engine.ExpiredUnregistered(ctx, now)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, d := range report.Expired {
					fmt.Fprintf(out, "EXPIRED  %s  %s  created %s\n", d.ID, d.Buyer.LegalName, d.CreatedAt.Format(time.RFC3339))
				}
				for _, d := range report.Expiring {
					left := d.CreatedAt.Add(lifecycle.RegistrationWindow).Sub(now).Truncate(time.Minute)
					fmt.Fprintf(out, "EXPIRING %s  %s  %s left\n", d.ID, d.Buyer.LegalName, left)
				}
				return nil
			})(cmd.Context())
		},
	}
}
