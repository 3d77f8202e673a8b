package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/apikey"
	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys stored in PostgreSQL",
	}
	cmd.AddCommand(newKeysCreateCmd(a), newKeysListCmd(a), newKeysRevokeCmd(a))
	return cmd
}

func (a *app) keyValidator() (*apikey.Validator, error) {
	db, err := a.postgres()
	if err != nil {
		return nil, err
	}
	return apikey.NewValidator(db), nil
}

func newKeysCreateCmd(a *app) *cobra.Command {
	var (
		name         string
		capabilities []string
		rateLimit    int
		ttl          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			v, err := a.keyValidator()
			if err != nil {
				return err
			}
			var expiresAt *time.Time
			if ttl > 0 {
				t := time.Now().Add(ttl).UTC()
				expiresAt = &t
			}
			raw, err := v.CreateKey(commandContext(cmd), name, capabilities, rateLimit, expiresAt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, raw)
			fmt.Fprintln(cmd.ErrOrStderr(), "store this key now; it cannot be shown again")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key owner or purpose")
	cmd.Flags().StringSliceVar(&capabilities, "capability", []string{"manage_options"}, "capabilities granted by the key")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", apikey.DefaultRateLimit, "requests per rate limit window")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime of the key (0 never expires)")
	return cmd
}

func newKeysListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.keyValidator()
			if err != nil {
				return err
			}
			keys, err := v.ListKeys(commandContext(cmd))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCAPABILITIES\tRATE LIMIT\tEXPIRES")
			for _, k := range keys {
				expires := "never"
				if k.ExpiresAt != nil {
					expires = k.ExpiresAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", k.ID, k.Name, strings.Join(k.Capabilities, ","), k.RateLimit, expires)
			}
			return tw.Flush()
		},
	}
}

func newKeysRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Deactivate an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.keyValidator()
			if err != nil {
				return err
			}
			if err := v.RevokeKey(commandContext(cmd), args[0]); err != nil {
				if errors.Is(err, apikey.ErrInvalidKey) {
					return fmt.Errorf("no active key with id %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
}
