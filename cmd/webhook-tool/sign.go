package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/signature"
)

var signCmd = &cobra.Command{
	Use:   "sign [file]",
	Short: "Print the X-Exl-Signature for a body read from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSign,
}

func init() {
	signCmd.Flags().String("secret", "", "Shared webhook secret (defaults to $WEBHOOK_SECRET)")
}

func runSign(cmd *cobra.Command, args []string) error {
	secret := flagOrEnv(cmd, "secret", "WEBHOOK_SECRET")
	if secret == "" {
		return fmt.Errorf("a webhook secret is required")
	}

	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), signature.Sign(body, secret))
	return nil
}

// flagOrEnv returns the named string flag, falling back to the environment
// variable key when the flag is empty.
func flagOrEnv(cmd *cobra.Command, name, key string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return os.Getenv(key)
}
