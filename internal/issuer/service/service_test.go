package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	credservice "vcflow/internal/credential/service"
	"vcflow/internal/identity"
	invmodels "vcflow/internal/invitation/models"
	invservice "vcflow/internal/invitation/service"
	"vcflow/internal/issuer/models"
	offermodels "vcflow/internal/offer/models"
	"vcflow/internal/platform/kv"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/requestcontext"
)

type countingMetrics struct {
	synthesized int
}

func (m *countingMetrics) IncDemoOfferSynthesized() { m.synthesized++ }

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	store       *kv.Memory[invmodels.Invitation]
	invitations *invservice.Service
	credentials *credservice.Service
	key         *identity.KeyPair
	metrics     *countingMetrics
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = kv.NewMemory[invmodels.Invitation]()
	s.invitations = invservice.New(s.store, invservice.WithoutExpiry())

	key, err := identity.GenerateKeyPair()
	s.Require().NoError(err)
	s.key = key
	s.credentials = credservice.New(identity.NewValidator(identity.NewRegistry()), credservice.WithSigner(identity.NewSigner(key)))
	s.metrics = &countingMetrics{}
}

func (s *ServiceSuite) newService(fallback bool) *Service {
	return New(s.invitations, s.credentials, models.Config{
		IssuerID:          "http://localhost:3001",
		PublicBaseURL:     "http://localhost:3001/",
		IssuerDID:         s.key.DID(),
		DemoOfferFallback: fallback,
	}, WithMetrics(s.metrics))
}

func (s *ServiceSuite) put(inv invmodels.Invitation) {
	s.Require().NoError(s.store.Set(s.ctx, inv.ID, inv))
}

func (s *ServiceSuite) TestMetadata() {
	svc := s.newService(true)

	md := svc.Metadata()
	s.Equal("http://localhost:3001", md.CredentialIssuer)
	s.Equal("http://localhost:3001/api/credentials/issue", md.CredentialEndpoint)
	s.Require().Len(md.CredentialsSupported, 1)
	s.Equal("jwt_vc_json", md.CredentialsSupported[0].Format)

	as := svc.AuthorizationServer()
	s.Equal(md.CredentialEndpoint, as.TokenEndpoint)
	s.Equal([]string{offermodels.GrantPreAuthorizedCode}, as.GrantTypesSupported)
}

func (s *ServiceSuite) TestCredentialOfferForStoredInvitation() {
	s.put(invmodels.Invitation{ID: "inv-1", Status: invmodels.StatusPending, CredentialType: "EmployeeCredential", CredentialJWT: "a.b."})

	o, err := s.newService(true).CredentialOffer(s.ctx, "inv-1")
	s.Require().NoError(err)
	s.Equal("inv-1", o.PreAuthorizedCode())
	s.Equal("a.b.", o.CredentialJWT())
	s.Equal("EmployeeCredential", o.CredentialType())
	s.Equal("http://localhost:3001", o.CredentialIssuer)
	s.Zero(s.metrics.synthesized)
}

func (s *ServiceSuite) TestCredentialOfferRequiresID() {
	_, err := s.newService(true).CredentialOffer(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.EqualError(err, "invitation_id is required")
}

func (s *ServiceSuite) TestCredentialOfferSynthesizesDemo() {
	o, err := s.newService(true).CredentialOffer(s.ctx, "unknown-1")
	s.Require().NoError(err)
	s.Equal("unknown-1", o.PreAuthorizedCode())
	s.Equal(models.DemoCredentialType, o.CredentialType())
	s.NotEmpty(o.CredentialJWT())
	s.Equal(1, s.metrics.synthesized)

	stored, err := s.store.Get(s.ctx, "unknown-1")
	s.Require().NoError(err)
	s.Equal(s.key.DID(), stored.IssuerDID)

	kind, err := identity.Inspect(stored.CredentialJWT, jwt.MapClaims{})
	s.Require().NoError(err)
	s.Equal(identity.KindSigned, kind)

	_, err = s.newService(true).CredentialOffer(s.ctx, "unknown-1")
	s.Require().NoError(err)
	s.Equal(1, s.metrics.synthesized, "second lookup finds the stored demo invitation")
}

func (s *ServiceSuite) TestCredentialOfferWithoutFallback() {
	_, err := s.newService(false).CredentialOffer(s.ctx, "unknown-1")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.EqualError(err, "Invitation not found")
}

func (s *ServiceSuite) TestIssueCredential() {
	svc := s.newService(false)

	s.Run("returns the credential and accepts the invitation", func() {
		s.put(invmodels.Invitation{ID: "inv-1", Status: invmodels.StatusPending, CredentialJWT: "a.b."})

		res, err := svc.IssueCredential(s.ctx, "inv-1")
		s.Require().NoError(err)
		s.Equal("a.b.", res.Credential)
		s.Equal("jwt_vc_json", res.Format)
		s.NotEmpty(res.CNonce)
		s.Equal(86400, res.CNonceExpiresIn)

		stored, err := s.store.Get(s.ctx, "inv-1")
		s.Require().NoError(err)
		s.Equal(invmodels.StatusAccepted, stored.Status)
	})

	s.Run("unknown code", func() {
		_, err := svc.IssueCredential(s.ctx, "nope")
		s.EqualError(err, "Invitation not found")
	})

	s.Run("invitation without credential", func() {
		s.put(invmodels.Invitation{ID: "empty", Status: invmodels.StatusPending})

		_, err := svc.IssueCredential(s.ctx, "empty")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.EqualError(err, "Credential JWT not available")

		stored, err := s.store.Get(s.ctx, "empty")
		s.Require().NoError(err)
		s.Equal(invmodels.StatusPending, stored.Status)
	})
}

func (s *ServiceSuite) TestIssueCredentialIsSingleUse() {
	svc := s.newService(false)

	s.Run("second redemption is a conflict", func() {
		s.put(invmodels.Invitation{ID: "once", Status: invmodels.StatusPending, CredentialJWT: "a.b."})

		_, err := svc.IssueCredential(s.ctx, "once")
		s.Require().NoError(err)

		_, err = svc.IssueCredential(s.ctx, "once")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.EqualError(err, "Invitation already accepted")
	})

	s.Run("rejected invitation stays rejected", func() {
		s.put(invmodels.Invitation{ID: "rej", Status: invmodels.StatusRejected, CredentialJWT: "a.b."})

		res, err := svc.IssueCredential(s.ctx, "rej")
		s.Nil(res)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		stored, err := s.store.Get(s.ctx, "rej")
		s.Require().NoError(err)
		s.Equal(invmodels.StatusRejected, stored.Status)
	})

	s.Run("expired invitation cannot be redeemed", func() {
		created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		s.put(invmodels.Invitation{
			ID:            "late",
			Status:        invmodels.StatusPending,
			CreatedAt:     created,
			ExpiresAt:     created.Add(time.Hour),
			CredentialJWT: "a.b.",
		})
		ctx := requestcontext.WithTime(s.ctx, created.Add(2*time.Hour))

		_, err := svc.IssueCredential(ctx, "late")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.EqualError(err, "Invitation already expired")

		stored, err := s.store.Get(s.ctx, "late")
		s.Require().NoError(err)
		s.Equal(invmodels.StatusPending, stored.Status)
	})

	s.Run("concurrent redemptions succeed once", func() {
		s.put(invmodels.Invitation{ID: "race", Status: invmodels.StatusPending, CredentialJWT: "a.b."})

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.IssueCredential(s.ctx, "race"); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		s.Equal(1, succeeded)
	})
}
