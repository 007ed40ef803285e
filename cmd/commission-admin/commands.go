package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/application"
	"nexus-commission/internal/service/commission/interfaces"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the commission schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				if err := e.store.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✅ schema is up to date")
				return nil
			})
		},
	}
}

func payoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payout",
		Short: "Batch, settle and release partner payouts",
	}

	create := &cobra.Command{
		Use:   "create [partner-id]",
		Short: "Batch every approved attribution of a partner into one payout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				resp, err := e.service.CreatePayout(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}

	var reference string
	var failed bool
	settle := &cobra.Command{
		Use:   "settle [payout-id]",
		Short: "Record the processor outcome of a pending payout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome := "COMPLETED"
			if failed {
				outcome = "FAILED"
			}
			return withEnv(func(ctx context.Context, e *env) error {
				resp, err := e.service.SettlePayout(ctx, args[0], &application.SettlePayoutRequest{Outcome: outcome, Reference: reference})
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
	settle.Flags().StringVar(&reference, "reference", "", "processor reference for the transfer")
	settle.Flags().BoolVar(&failed, "failed", false, "mark the payout as failed instead of completed")

	release := &cobra.Command{
		Use:   "release [payout-id]",
		Short: "Return the attributions of a failed payout to the claimable pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				resp, err := e.service.ReleasePayout(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}

	cmd.AddCommand(create, settle, release)
	return cmd
}

func tierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Partner tier maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "recompute [partner-id...]",
		Short: "Re-derive the tier of partners from their total sales",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				for _, id := range args {
					resp, err := e.service.RecomputeTier(ctx, id)
					if err != nil {
						return fmt.Errorf("partner %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", resp.ID, resp.Tier)
				}
				return nil
			})
		},
	})
	return cmd
}

func ruleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage commission rate rules",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				rules, err := e.service.ListRules(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, rules)
			})
		},
	}

	set := &cobra.Command{
		Use:   "set [scope-kind] [scope-value] [rate]",
		Short: "Create a rule, e.g. `rule set product sku-1 7.5` or `rule set global - 4`",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := money.ParsePercent(args[2])
			if err != nil {
				return err
			}
			value := args[1]
			if value == "-" {
				value = ""
			}
			return withEnv(func(ctx context.Context, e *env) error {
				rule, err := e.service.CreateRule(ctx, &application.RuleRequest{
					ScopeKind:  strings.ToUpper(args[0]),
					ScopeValue: value,
					Rate:       rate,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, rule)
			})
		},
	}

	disable := &cobra.Command{
		Use:   "disable [rule-id]",
		Short: "Deactivate a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				rule, err := e.service.DeactivateRule(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, rule)
			})
		},
	}

	cmd.AddCommand(list, set, disable)
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			r := interfaces.Role(strings.ToLower(role))
			switch r {
			case interfaces.RoleAdmin, interfaces.RoleReviewer, interfaces.RoleOperator, interfaces.RoleIngest:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := interfaces.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(subject, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "ops", "token subject")
	cmd.Flags().StringVar(&role, "role", string(interfaces.RoleOperator), "admin, reviewer, operator or ingest")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
