package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/config"
	"github.com/alapierre/go-eims-client/eims/keys"
	"github.com/alapierre/go-eims-client/eims/sign"
	"github.com/alapierre/go-eims-client/png"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

func tokenCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Log in and print the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			tokens := newTokens(c, api.NewRetryingTransport(c.Transport))
			token, _, err := tokens.GetToken(cmd.Context())
			if err != nil {
				return err
			}
			cur := tokens.Current()
			fmt.Fprintln(cmd.OutOrStdout(), token)
			if cur != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "valid until %s\n", cur.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func qrCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "qr <signed-qr>",
		Short: "Render a registry QR payload as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := png.Qr(args[0])
			if err != nil {
				return errors.Wrap(err, "render qr")
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "qr.png", "output file, - for stdout")
	return cmd
}

func keygenCmd() *cobra.Command {
	var tin, keyPath, certPath, password string
	var bits int
	var validFor time.Duration
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a self-signed key pair for a sandbox registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ss, err := keys.GenerateSelfSigned(bits, tin, validFor)
			if err != nil {
				return err
			}
			var pass []byte
			if password != "" {
				pass = []byte(password)
			}
			keyPEM, err := keys.EncodePrivateKeyPEM(ss.Key, pass)
			if err != nil {
				return err
			}
			if certPath == "" {
				certPath = tin + ".pem"
			}
			if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
				return errors.Wrap(err, "write key")
			}
			if err := os.WriteFile(certPath, ss.CertPEM, 0644); err != nil {
				return errors.Wrap(err, "write certificate")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", keyPath, certPath)
			return err
		},
	}
	cmd.Flags().StringVar(&tin, "tin", "", "seller TIN used as certificate common name")
	cmd.Flags().StringVar(&keyPath, "key", config.DefaultKeyPath, "private key output")
	cmd.Flags().StringVar(&certPath, "cert", "", "certificate output, defaults to <tin>.pem")
	cmd.Flags().StringVar(&password, "password", "", "encrypt the key with PKCS#8 and this password")
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "certificate validity")
	_ = cmd.MarkFlagRequired("tin")
	return cmd
}

func verifySignatureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-signature <envelope.json>",
		Short: "Check a signed request envelope against its certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read envelope")
			}
			var env sign.SignedEnvelope
			if err := env.UnmarshalJSON(raw); err != nil {
				return errors.Wrap(err, "decode envelope")
			}
			if err := sign.Verify(&env); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "signature ok")
			return err
		},
	}
}
