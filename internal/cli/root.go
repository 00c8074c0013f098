// Package cli implements vcctl, the command line counterpart of the browser
// wallet: keys, offers, invitations, credentials and presentations, persisted
// in a local bbolt file and optionally mirrored to the dev server.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.etcd.io/bbolt"

	credmodels "vcflow/internal/credential/models"
	credservice "vcflow/internal/credential/service"
	"vcflow/internal/identity"
	"vcflow/internal/invitation/mirror"
	invmodels "vcflow/internal/invitation/models"
	invservice "vcflow/internal/invitation/service"
	"vcflow/internal/offer"
	"vcflow/internal/platform/config"
	"vcflow/internal/platform/kv"
	"vcflow/internal/platform/logger"
	presmodels "vcflow/internal/presentation/models"
	presservice "vcflow/internal/presentation/service"
	"vcflow/internal/sentinel"
)

const (
	bucketKeys          = "keys"
	bucketInvitations   = "invitations"
	bucketCredentials   = "credentials"
	bucketPresentations = "presentations"

	holderKeyID = "holder"
)

// keyRecord is how the holder key is persisted.
type keyRecord struct {
	DID  string `json:"did"`
	Seed []byte `json:"seed"`
}

// app holds the state shared by all commands. Stores and services are opened
// on first use so commands like "offer decode" never touch the data file.
type app struct {
	cfg        config.Client
	logLevel   string
	httpClient *http.Client

	log  *slog.Logger
	db   *bbolt.DB
	keys kv.Store[keyRecord]
	key  *identity.KeyPair

	mirror        *mirror.Client
	invitations   *invservice.Service
	credentials   *credservice.Service
	presentations *presservice.Service
}

// Run executes vcctl with args. The data file is released afterwards, also
// when the command failed.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, a := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

// newRootCommand builds the vcctl command tree. Flag defaults come from the
// environment (see config.ClientFromEnv).
func newRootCommand() (*cobra.Command, *app) {
	a := &app{cfg: config.ClientFromEnv(), httpClient: http.DefaultClient}

	root := &cobra.Command{
		Use:           "vcctl",
		Short:         "Issue, offer, hold and present verifiable credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
			}
			a.log = logger.NewWithWriter(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	root.PersistentFlags().AddFlagSet(a.flagSet())

	root.AddCommand(
		a.keysCommand(),
		a.offerCommand(),
		a.invitationCommand(),
		a.credentialCommand(),
		a.presentationCommand(),
	)
	return root, a
}

func (a *app) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("vcctl", pflag.ContinueOnError)
	flags.StringVar(&a.cfg.DataFile, "data-file", a.cfg.DataFile, "bbolt file holding keys, invitations, credentials and presentations.")
	flags.StringVar(&a.cfg.ServerURL, "server", a.cfg.ServerURL, "Dev server used for URL shortening and invitation mirroring.")
	flags.StringVar(&a.cfg.AppBaseURL, "app-url", a.cfg.AppBaseURL, "Origin of the wallet web app the HTTP offer link points at.")
	flags.StringVar(&a.cfg.OfferScheme, "scheme", a.cfg.OfferScheme, "URI scheme of the wallet deep link.")
	flags.StringVar(&a.cfg.IssuerID, "issuer", a.cfg.IssuerID, "credential_issuer advertised in offers.")
	flags.DurationVar(&a.cfg.InvitationTTL, "ttl", a.cfg.InvitationTTL, "How long new invitations stay redeemable, in Golang time.Duration format (e.g. 24h).")
	flags.BoolVar(&a.cfg.Mirror, "mirror", a.cfg.Mirror, "Mirror invitations to the dev server.")
	flags.BoolVar(&a.cfg.Shorten, "shorten", a.cfg.Shorten, "Shorten HTTP offer links through the dev server.")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error); logs go to stderr.")
	return flags
}

// open initializes the data file and every service on first call.
func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	db, err := kv.OpenBolt(a.cfg.DataFile)
	if err != nil {
		return err
	}
	a.db = db

	if a.keys, err = kv.NewBolt[keyRecord](db, bucketKeys); err != nil {
		return err
	}
	if err := a.loadKey(ctx); err != nil {
		return err
	}
	invitationStore, err := kv.NewBolt[invmodels.Invitation](db, bucketInvitations)
	if err != nil {
		return err
	}
	wallet, err := kv.NewBolt[credmodels.StoredCredential](db, bucketCredentials)
	if err != nil {
		return err
	}
	presentationStore, err := kv.NewBolt[presmodels.StoredPresentation](db, bucketPresentations)
	if err != nil {
		return err
	}

	invOpts := []invservice.Option{
		invservice.WithEncoder(offer.NewEncoder(a.cfg.OfferScheme, a.cfg.AppBaseURL)),
		invservice.WithLogger(a.log),
	}
	if a.cfg.Shorten {
		invOpts = append(invOpts, invservice.WithShortener(offer.NewShortenerClient(a.cfg.ServerURL, a.httpClient, a.log)))
	}
	a.mirror = mirror.New(a.cfg.ServerURL, a.httpClient)
	if a.cfg.Mirror {
		invOpts = append(invOpts, invservice.WithMirror(a.mirror))
	}
	a.invitations = invservice.New(invitationStore, invOpts...)

	validator := identity.NewValidator(identity.NewRegistry())
	credOpts := []credservice.Option{credservice.WithWallet(wallet), credservice.WithLogger(a.log)}
	presOpts := []presservice.Option{presservice.WithStore(presentationStore), presservice.WithLogger(a.log)}
	if a.key != nil {
		signer := identity.NewSigner(a.key)
		credOpts = append(credOpts, credservice.WithSigner(signer))
		presOpts = append(presOpts, presservice.WithSigner(signer))
	}
	a.credentials = credservice.New(validator, credOpts...)
	a.presentations = presservice.New(validator, a.credentials, presOpts...)
	return nil
}

func (a *app) loadKey(ctx context.Context) error {
	rec, err := a.keys.Get(ctx, holderKeyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load holder key: %w", err)
	}
	a.key, err = identity.KeyPairFromSeed(rec.Seed)
	return err
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// holderDID is the DID of the stored key, or "" when none was generated.
func (a *app) holderDID() string {
	if a.key == nil {
		return ""
	}
	return a.key.DID()
}

// ttlMinutes rounds the configured TTL up to whole minutes, so a sub-minute
// TTL still yields a redeemable invitation. Zero stays zero (expired at once).
func (a *app) ttlMinutes() int {
	ttl := a.cfg.InvitationTTL
	if ttl <= 0 {
		return int(ttl / time.Minute)
	}
	return int((ttl + time.Minute - 1) / time.Minute)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
