package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apiclient "github.com/splax/onboard/pkg/api/client"
	"github.com/splax/onboard/pkg/config"
	jwtpkg "github.com/splax/onboard/pkg/jwt"
)

const requestTimeout = 15 * time.Second

type rootOptions struct {
	apiBase string
	token   string
	out     io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{out: os.Stdout}
	root := &cobra.Command{
		Use:           "onboardctl",
		Short:         "Operator tooling for the onboard registration API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildVersion,
	}
	root.PersistentFlags().StringVar(&opts.apiBase, "api", "", "API base URL (default from config or "+apiclient.DefaultBaseURL+")")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "admin bearer token (default from config)")
	root.SetOut(opts.out)

	root.AddCommand(newLoginCmd(opts), newTokenCmd(), newPendingCmd(opts), newHealthCmd(opts))
	return root
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Mint an admin token from the shared secret and store it locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd)
			if err != nil {
				return err
			}
			token, err := jwtpkg.GenerateAdminToken(subject, secret, ttl)
			if err != nil {
				return fmt.Errorf("sign admin token: %w", err)
			}
			cfg, _ := loadConfig()
			if strings.TrimSpace(opts.apiBase) != "" {
				cfg.APIBaseURL = opts.apiBase
			}
			cfg.AccessToken = token
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "login successful (expires in %s)\n", ttl)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", defaultSubject(), "token subject recorded in audit logs")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed admin token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd)
			if err != nil {
				return err
			}
			token, err := jwtpkg.GenerateAdminToken(subject, secret, ttl)
			if err != nil {
				return fmt.Errorf("sign admin token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", defaultSubject(), "token subject recorded in audit logs")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func newPendingCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect staged registrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show how many registrations await confirmation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, token, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			stats, err := client.PendingStats(ctx, token)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired registrations now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, token, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			result, err := client.SweepPending(ctx, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired registrations\n", result.Removed)
			return nil
		},
	})
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show dependency health of the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			health, err := client.Health(ctx)
			if health.Status != "" {
				if perr := printJSON(cmd.OutOrStdout(), health); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

// client resolves the API address and token from flags, then the saved config.
func (o *rootOptions) client() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	base := cfg.APIBaseURL
	if strings.TrimSpace(o.apiBase) != "" {
		base = o.apiBase
	}
	token := cfg.AccessToken
	if strings.TrimSpace(o.token) != "" {
		token = o.token
	}
	client, err := apiclient.New(base)
	if err != nil {
		return nil, "", err
	}
	return client, strings.TrimSpace(token), nil
}

// readSecret takes the signing secret from ADMIN_JWT_SECRET or prompts for it.
func readSecret(cmd *cobra.Command) (string, error) {
	if secret := config.GetString("ADMIN_JWT_SECRET", ""); secret != "" {
		return secret, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("ADMIN_JWT_SECRET is not set and stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Admin JWT secret: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", errors.New("empty secret")
	}
	return secret, nil
}

func defaultSubject() string {
	if user := config.GetString("USER", ""); user != "" {
		return user
	}
	return "operator"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
