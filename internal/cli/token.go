package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwrk-planet/qaroom/internal/domain"
)

type TokenOptions struct {
	*RootOptions
	User   string
	Name   string
	Avatar string
}

// NewTokenCommand signs an access token with the configured key. Meant for
// local testing; production tokens come from the identity provider.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for a viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.User == "" {
				return errors.New("token: --user is required")
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			signer, err := newSigner(cfg.Auth)
			if err != nil {
				return err
			}
			tok, err := signer.Sign(domain.Viewer{
				ID:     domain.UserID(opts.User),
				Name:   opts.Name,
				Avatar: opts.Avatar,
			}, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.User, "user", "u", "", "user id (token subject)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Avatar, "avatar", "", "avatar URL")

	return cmd
}
