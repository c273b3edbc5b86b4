package cli

import (
	"fmt"
	"io"
	"time"

	"mileage-service/internal/config"
	"mileage-service/internal/pkg/jwt"

	"github.com/spf13/cobra"
)

type tokenOptions struct {
	identity int64
	roles    []string
	privPath string
	pubPath  string
	ttl      time.Duration
}

// NewTokenCommand issues an access token for the API. Keys and claims default
// to the same environment the server reads.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	defaults := config.Load().JWT
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if opts.identity <= 0 {
				return out.Fail("token", NewExitError(ExitCommandError, "--identity must be positive"))
			}

			cfg := defaults
			cfg.PrivPath, cfg.PubPath, cfg.TTL = opts.privPath, opts.pubPath, opts.ttl

			mgr, err := jwt.LoadAndBuild(cfg)
			if err != nil {
				return out.Fail("token", WrapExitError(ExitCommandError, "failed to load keys", err))
			}
			token, jti, err := mgr.Generator.GenerateAccessToken(opts.identity, rootOpts.Tenant, opts.roles)
			if err != nil {
				return out.Fail("token", err)
			}

			data := map[string]interface{}{
				"access_token": token,
				"jti":          jti,
				"expires_in":   int64(mgr.Generator.TTL().Seconds()),
			}
			return out.Result(data, func(w io.Writer) { fmt.Fprintln(w, token) })
		},
	}

	cmd.Flags().Int64Var(&opts.identity, "identity", 0, "identity id (sub claim)")
	cmd.Flags().StringSliceVar(&opts.roles, "roles", []string{jwt.RoleOperator}, "roles to grant")
	cmd.Flags().StringVar(&opts.privPath, "private-key", defaults.PrivPath, "RSA private key (PEM)")
	cmd.Flags().StringVar(&opts.pubPath, "public-key", defaults.PubPath, "RSA public key (PEM)")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", defaults.TTL, "token lifetime")
	return cmd
}
