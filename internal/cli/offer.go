package cli

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vcflow/internal/offer"
)

func (a *app) offerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Encode and decode OpenID4VCI credential offers",
	}
	cmd.AddCommand(a.offerEncodeCommand(), a.offerDecodeCommand())
	return cmd
}

type encodedOffer struct {
	PreAuthorizedCode string `json:"preAuthorizedCode"`
	DeepLink          string `json:"deepLink"`
	HTTPURL           string `json:"httpUrl"`
}

func (a *app) offerEncodeCommand() *cobra.Command {
	var credentialJWT, credentialType, code string
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Wrap a credential JWT in an offer and print both offer links.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if code == "" {
				code = uuid.NewString()
			}
			o, err := offer.BuildWithCode(code, credentialJWT, credentialType, a.cfg.IssuerID)
			if err != nil {
				return err
			}
			enc := offer.NewEncoder(a.cfg.OfferScheme, a.cfg.AppBaseURL)
			deepLink, err := enc.DeepLink(o)
			if err != nil {
				return err
			}
			httpURL, err := enc.HTTPLink(o)
			if err != nil {
				return err
			}
			return printJSON(cmd, encodedOffer{
				PreAuthorizedCode: o.PreAuthorizedCode(),
				DeepLink:          deepLink,
				HTTPURL:           httpURL,
			})
		},
	}
	cmd.Flags().StringVar(&credentialJWT, "credential", "", "Credential JWT to embed.")
	cmd.Flags().StringVar(&credentialType, "type", "", "Credential type; defaults to VerifiableCredential.")
	cmd.Flags().StringVar(&code, "code", "", "Pre-authorized code; a random UUID when empty.")
	return cmd
}

func (a *app) offerDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [url]",
		Short: "Decode an offer link, fetching credential_offer_uri when needed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dec := offer.NewDecoder(offer.WithHTTPClient(a.httpClient), offer.WithDecoderLogger(a.log))
			o, err := dec.Decode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
}
