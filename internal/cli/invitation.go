package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	invmodels "vcflow/internal/invitation/models"
)

func (a *app) invitationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invitation",
		Aliases: []string{"inv"},
		Short:   "Create and track credential invitations",
	}
	cmd.AddCommand(
		a.invitationCreateCommand(),
		a.invitationListCommand(),
		a.invitationGetCommand(),
		a.invitationStatusCommand("accept", invmodels.StatusAccepted),
		a.invitationStatusCommand("reject", invmodels.StatusRejected),
		a.invitationDeleteCommand(),
		a.invitationClearExpiredCommand(),
		a.invitationClearAllCommand(),
	)
	return cmd
}

func (a *app) invitationCreateCommand() *cobra.Command {
	var credentialJWT, credentialFile, credentialType string
	var showQR bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invitation for a credential and print its links.",
		Long: "Create an invitation for a credential. The offer is encoded as a wallet deep link and an " +
			"HTTP link; the HTTP link is shortened and the invitation mirrored to the dev server when enabled.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if credentialFile != "" {
				data, err := os.ReadFile(credentialFile)
				if err != nil {
					return fmt.Errorf("read credential: %w", err)
				}
				credentialJWT = strings.TrimSpace(string(data))
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			inv, err := a.invitations.Create(cmd.Context(), credentialJWT, credentialType, a.cfg.IssuerID, a.ttlMinutes())
			if err != nil {
				return err
			}
			if err := printJSON(cmd, inv); err != nil {
				return err
			}
			if showQR {
				printQRCode(cmd, inv)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&credentialJWT, "credential", "", "Credential JWT to offer.")
	cmd.Flags().StringVar(&credentialFile, "credential-file", "", "Read the credential JWT from a file.")
	cmd.Flags().StringVar(&credentialType, "type", "", "Credential type shown to the wallet.")
	cmd.Flags().BoolVar(&showQR, "qr", false, "Print the deep link as a QR code.")
	cmd.MarkFlagsMutuallyExclusive("credential", "credential-file")
	return cmd
}

// maxQRPayload is the byte capacity of a version 40 QR code at level L.
const maxQRPayload = 2953

// printQRCode renders the short link when there is one; full deep links with
// an embedded credential can exceed what a QR code holds.
func printQRCode(cmd *cobra.Command, inv *invmodels.Invitation) {
	content := inv.DeepLink
	if inv.ShortURL != "" {
		content = inv.ShortURL
	}
	if len(content) > maxQRPayload {
		cmd.PrintErrf("link is %d bytes, too long for a QR code; enable --shorten\n", len(content))
		return
	}
	qrterminal.GenerateHalfBlock(content, qrterminal.L, cmd.OutOrStdout())
}

func (a *app) invitationListCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invitations, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			list := a.invitations.List
			if remote {
				list = a.mirror.List
			}
			invitations, err := list(cmd.Context())
			if err != nil {
				return err
			}
			if invitations == nil {
				invitations = []invmodels.Invitation{}
			}
			return printJSON(cmd, invitations)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "List the dev server's copy instead of the local store.")
	return cmd
}

func (a *app) invitationGetCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one invitation; a pending invitation past its expiry is marked expired.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			get := a.invitations.Get
			if remote {
				get = a.mirror.Get
			}
			inv, err := get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, inv)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Read the dev server's copy instead of the local store.")
	return cmd
}

func (a *app) invitationStatusCommand(use string, status invmodels.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: fmt.Sprintf("Mark an invitation %s.", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			inv, err := a.invitations.SetStatus(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}
			return printJSON(cmd, inv)
		},
	}
}

func (a *app) invitationDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one invitation from the local store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.invitations.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func (a *app) invitationClearExpiredCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-expired",
		Short: "Remove expired invitations from the local store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			n, err := a.invitations.ClearExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired invitation(s)\n", n)
			return nil
		},
	}
}

type clearAllOutput struct {
	invmodels.ClearResult
	LocalError  string `json:"localError,omitempty"`
	RemoteError string `json:"remoteError,omitempty"`
}

func (a *app) invitationClearAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-all",
		Short: "Remove every invitation locally and on the dev server.",
		Long: "Remove every invitation locally and, when mirroring is enabled, on the dev server. Both " +
			"sides are always attempted; a failure on one side does not undo the other.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			result, err := a.invitations.ClearAll(cmd.Context())
			out := clearAllOutput{ClearResult: result}
			if result.LocalErr != nil {
				out.LocalError = result.LocalErr.Error()
			}
			if result.RemoteErr != nil {
				out.RemoteError = result.RemoteErr.Error()
			}
			if printErr := printJSON(cmd, out); printErr != nil {
				return errors.Join(err, printErr)
			}
			return err
		},
	}
}
