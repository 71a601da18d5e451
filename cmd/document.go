package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alapierre/go-eims-client/eims/config"
	"github.com/alapierre/go-eims-client/eims/lifecycle"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func importCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <document.json>",
		Short: "Store a document read from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read document")
			}
			doc, err := decodeDocument(raw, time.Now().UTC())
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *app) error {
				if err := a.store.SaveDocument(ctx, doc); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), doc.ID)
				return err
			})(cmd.Context())
		},
	}
}

// decodeDocument fills what an exported document usually lacks.
func decodeDocument(raw []byte, now time.Time) (*model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	if doc.ID == "" {
		doc.ID = model.NewID()
	}
	if doc.Kind == "" {
		doc.Kind = model.KindInvoice
	}
	if doc.Status == "" {
		doc.Status = model.StatusUnregistered
	}
	if doc.Currency == "" {
		doc.Currency = "ETB"
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = now
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	return &doc, nil
}

func submitCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <document-id>",
		Short: "Register an invoice with the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app) error {
				doc, err := a.engine.Submit(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, doc)
			})(cmd.Context())
		},
	}
}

func verifyCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <document-id>",
		Short: "Check the registry state of a registered document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app) error {
				status, err := a.engine.Verify(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), status)
				return err
			})(cmd.Context())
		},
	}
}

func cancelCmd(cfg func() *config.Config) *cobra.Command {
	var reason, remark string
	cmd := &cobra.Command{
		Use:   "cancel <document-id>",
		Short: "Cancel a registered document",
		Long: `Cancel a registered document.

Reason codes: 1 duplicate, 2 data error, 3 goods returned, 4 other.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app) error {
				doc, err := a.engine.Cancel(ctx, args[0], reason, remark)
				if err != nil {
					return err
				}
				return printJSON(cmd, doc)
			})(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "cancellation reason code (1-4)")
	cmd.Flags().StringVarP(&remark, "remark", "m", "", "free text remark")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func creditMemoCmd(cfg func() *config.Config) *cobra.Command {
	var draftFrom string
	cmd := &cobra.Command{
		Use:   "credit-memo [memo-id]",
		Short: "Register a credit or debit memo against its original invoice",
		Long: `Register a credit or debit memo against its original invoice.

With --draft-from the command stores a new memo copied from the given
registered invoice and prints its id; edit the lines, then register it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if draftFrom == "" && len(args) != 1 {
				return errors.New("memo id or --draft-from is required")
			}
			return withApp(cfg, func(ctx context.Context, a *app) error {
				if draftFrom != "" {
					original, err := a.store.FindDocument(ctx, draftFrom)
					if err != nil {
						return err
					}
					memo := lifecycle.DraftMemo(original)
					if err := a.store.SaveDocument(ctx, memo); err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), memo.ID)
					return err
				}
				doc, err := a.engine.IssueCreditMemo(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, doc)
			})(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&draftFrom, "draft-from", "", "invoice id to copy into a new memo")
	return cmd
}

func receiptCmd(cfg func() *config.Config) *cobra.Command {
	var amount, mode, reason, manual string
	cmd := &cobra.Command{
		Use:   "receipt <document-id>",
		Short: "Post a sales receipt for a verified invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			details := model.ReceiptDetails{
				PaymentMode:         mode,
				Reason:              reason,
				ManualReceiptNumber: manual,
				ReceivedAt:          time.Now().UTC(),
			}
			if amount != "" {
				v, err := decimal.NewFromString(amount)
				if err != nil {
					return errors.Wrap(err, "amount")
				}
				details.Amount = v
			}
			return withApp(cfg, func(ctx context.Context, a *app) error {
				entry, err := a.engine.IssueReceipt(ctx, args[0], details)
				if err != nil {
					return err
				}
				return printJSON(cmd, entry)
			})(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount received, defaults to the invoice total")
	cmd.Flags().StringVar(&mode, "mode", "CASH", "payment mode")
	cmd.Flags().StringVar(&reason, "reason", "", "receipt reason")
	cmd.Flags().StringVar(&manual, "manual-number", "", "manual receipt number")
	return cmd
}

func withholdingCmd(cfg func() *config.Config) *cobra.Command {
	var preTax, rate, reason, email string
	cmd := &cobra.Command{
		Use:   "withholding <invoice-irn>",
		Short: "Declare a withholding receipt against a registered invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := &model.WithholdingReceipt{
				InvoiceIrn:  args[0],
				Reason:      reason,
				NotifyEmail: email,
				ReceiptDate: time.Now().UTC(),
			}
			v, err := decimal.NewFromString(preTax)
			if err != nil {
				return errors.Wrap(err, "pre-tax amount")
			}
			w.PreTaxAmount = v
			if rate != "" {
				r, err := decimal.NewFromString(rate)
				if err != nil {
					return errors.Wrap(err, "rate")
				}
				w.Rate = r
			}
			return withApp(cfg, func(ctx context.Context, a *app) error {
				got, err := a.engine.SubmitWithholding(ctx, w)
				if err != nil {
					return err
				}
				return printJSON(cmd, got)
			})(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&preTax, "pre-tax", "", "pre-tax amount the withholding applies to")
	cmd.Flags().StringVar(&rate, "rate", "", "withholding rate in percent, default 3")
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	cmd.Flags().StringVar(&email, "email", "", "address notified with the receipt")
	_ = cmd.MarkFlagRequired("pre-tax")
	return cmd
}
