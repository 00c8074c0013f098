package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vcflow/internal/identity"
)

func (a *app) keysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the holder's did:key",
	}
	cmd.AddCommand(a.keysGenerateCommand(), a.keysShowCommand())
	return cmd
}

func (a *app) keysGenerateCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an Ed25519 key and store it as the holder key.",
		Long: "Generate an Ed25519 key and store it as the holder key. Credentials issued by and " +
			"presentations held by its did:key are signed; everything else falls back to unsigned JWTs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if a.key != nil && !force {
				return errors.New("a holder key already exists, use --force to replace it")
			}
			key, err := identity.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := a.keys.Set(cmd.Context(), holderKeyID, keyRecord{DID: key.DID(), Seed: key.Seed()}); err != nil {
				return err
			}
			a.key = key
			fmt.Fprintln(cmd.OutOrStdout(), key.DID())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing holder key.")
	return cmd
}

func (a *app) keysShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the DID document of the holder key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if a.key == nil {
				return errors.New("no holder key, run 'keys generate' first")
			}
			doc, err := identity.BuildDocument(a.key.DID(), a.key.Public)
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		},
	}
}
