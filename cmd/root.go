// Package cmd is the eims command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alapierre/go-eims-client/eims/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logger = logrus.WithField("component", "eims.cmd")

var Version = "dev"

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "eims",
		Short:         "Ethiopian EIMS e-invoicing registry client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load()
			if err != nil {
				return err
			}
			c.ApplyLogging()
			cfg = c
			return nil
		},
	}

	get := func() *config.Config { return cfg }

	root.AddCommand(
		serveCmd(get),
		importCmd(get),
		submitCmd(get),
		verifyCmd(get),
		cancelCmd(get),
		creditMemoCmd(get),
		receiptCmd(get),
		withholdingCmd(get),
		bulkSubmitCmd(get),
		bulkCancelCmd(get),
		sweepCmd(get),
		expiredCmd(get),
		tokenCmd(get),
		qrCmd(),
		keygenCmd(),
		verifySignatureCmd(),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
