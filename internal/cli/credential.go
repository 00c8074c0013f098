package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	credmodels "vcflow/internal/credential/models"
)

func (a *app) credentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credential",
		Aliases: []string{"cred"},
		Short:   "Issue, verify and keep credentials",
	}
	cmd.AddCommand(
		a.credentialIssueCommand(),
		a.credentialVerifyCommand(),
		a.credentialSaveCommand(),
		a.credentialListCommand(),
		a.credentialClearCommand(),
	)
	return cmd
}

func (a *app) credentialIssueCommand() *cobra.Command {
	var req credmodels.IssueRequest
	var claims map[string]string
	var save bool
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a credential, signed when the issuer is the holder key's DID.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if req.Issuer == "" {
				req.Issuer = a.holderDID()
			}
			req.Claims = make(map[string]any, len(claims))
			for k, v := range claims {
				req.Claims[k] = v
			}
			issued, err := a.credentials.Issue(cmd.Context(), req)
			if err != nil {
				return err
			}
			if save {
				if _, err := a.credentials.Save(cmd.Context(), issued.JWT); err != nil {
					return err
				}
			}
			return printJSON(cmd, issued)
		},
	}
	cmd.Flags().StringVar(&req.Issuer, "issuer-did", "", "Issuer DID; defaults to the holder key's DID.")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "Subject DID.")
	cmd.Flags().StringVar(&req.Type, "type", "", "Credential type, e.g. UniversityDegreeCredential.")
	cmd.Flags().StringToStringVar(&claims, "claim", nil, "Subject claim as key=value; repeatable.")
	cmd.Flags().BoolVar(&save, "save", false, "Also store the credential in the wallet.")
	return cmd
}

func (a *app) credentialVerifyCommand() *cobra.Command {
	var expectedIssuer string
	cmd := &cobra.Command{
		Use:   "verify [jwt]",
		Short: "Verify a credential; unsigned demo credentials get structural checks only.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			res, err := a.credentials.VerifyFrom(cmd.Context(), args[0], expectedIssuer)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&expectedIssuer, "expected-issuer", "", "Fail unless the credential was issued by this DID.")
	return cmd
}

func (a *app) credentialSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save [jwt]",
		Short: "Store a received credential in the wallet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			stored, err := a.credentials.Save(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, stored)
		},
	}
}

func (a *app) credentialListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unexpired wallet credentials, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			creds, err := a.credentials.List(cmd.Context())
			if err != nil {
				return err
			}
			if creds == nil {
				creds = []credmodels.StoredCredential{}
			}
			return printJSON(cmd, creds)
		},
	}
}

func (a *app) credentialClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every credential from the wallet.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			n, err := a.credentials.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d credential(s)\n", n)
			return nil
		},
	}
}
