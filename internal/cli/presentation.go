package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	presmodels "vcflow/internal/presentation/models"
)

func (a *app) presentationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "presentation",
		Aliases: []string{"vp"},
		Short:   "Create and verify presentations",
	}
	cmd.AddCommand(
		a.presentationCreateCommand(),
		a.presentationVerifyCommand(),
		a.presentationListCommand(),
		a.presentationClearCommand(),
	)
	return cmd
}

func (a *app) presentationCreateCommand() *cobra.Command {
	var req presmodels.CreateRequest
	var fromWallet bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Wrap credentials in a presentation, signed when the holder key is available.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if req.Holder == "" {
				req.Holder = a.holderDID()
			}
			if fromWallet {
				creds, err := a.credentials.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, c := range creds {
					req.Credentials = append(req.Credentials, c.JWT)
				}
			}
			stored, err := a.presentations.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, stored)
		},
	}
	cmd.Flags().StringVar(&req.Holder, "holder", "", "Holder DID; defaults to the holder key's DID.")
	cmd.Flags().StringArrayVar(&req.Credentials, "credential", nil, "Credential JWT to embed; repeatable, order is kept.")
	cmd.Flags().BoolVar(&fromWallet, "from-wallet", false, "Embed every unexpired wallet credential.")
	cmd.Flags().StringVar(&req.Challenge, "challenge", "", "Verifier challenge, carried as the nonce claim.")
	cmd.Flags().StringVar(&req.Audience, "audience", "", "Intended verifier.")
	cmd.Flags().IntVar(&req.ExpiryMinutes, "expiry-minutes", 0, "Lifetime in minutes; 0 means the default of 60.")
	return cmd
}

func (a *app) presentationVerifyCommand() *cobra.Command {
	var req presmodels.VerifyRequest
	cmd := &cobra.Command{
		Use:   "verify [jwt]",
		Short: "Verify a presentation and each embedded credential.",
		Long: "Verify a presentation. The outer JWT and the challenge must check out; embedded credentials " +
			"are checked one by one and a failure there only clears credentialsValid.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			req.JWT = args[0]
			res, err := a.presentations.Verify(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&req.Challenge, "challenge", "", "Challenge the presentation nonce must equal.")
	cmd.Flags().StringArrayVar(&req.ExpectedIssuers, "expected-issuer", nil, "Issuer DID of the credential at the same position; repeatable.")
	return cmd
}

func (a *app) presentationListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List created presentations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			list, err := a.presentations.List(cmd.Context())
			if err != nil {
				return err
			}
			if list == nil {
				list = []presmodels.StoredPresentation{}
			}
			return printJSON(cmd, list)
		},
	}
}

func (a *app) presentationClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored presentation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			n, err := a.presentations.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d presentation(s)\n", n)
			return nil
		},
	}
}
