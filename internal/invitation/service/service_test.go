package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vcflow/internal/invitation/models"
	"vcflow/internal/invitation/service/mocks"
	"vcflow/internal/offer"
	offermocks "vcflow/internal/offer/mocks"
	"vcflow/internal/platform/kv"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/requestcontext"
)

const (
	credJWT = "eyJhbGciOiJub25lIn0.eyJpc3MiOiJkaWQ6a2V5Onppc3N1ZXIiLCJzdWIiOiJkaWQ6a2V5OnpoIn0."
	issuer  = "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mirror    *mocks.MockMirror
	shortener *offermocks.MockShortener
	store     *kv.Memory[models.Invitation]
	now       time.Time
	ctx       context.Context
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mirror = mocks.NewMockMirror(s.ctrl)
	s.shortener = offermocks.NewMockShortener(s.ctrl)
	s.store = kv.NewMemory[models.Invitation]()
	s.now = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.svc = New(s.store,
		WithEncoder(offer.NewEncoder("openid-credential-offer", "http://localhost:5173")),
		WithShortener(s.shortener),
		WithMirror(s.mirror),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *ServiceSuite) create(ttlMinutes int) *models.Invitation {
	s.shortener.EXPECT().Shorten(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u string) string { return u })
	s.mirror.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	inv, err := s.svc.Create(s.ctx, credJWT, "UniversityDegree", issuer, ttlMinutes)
	s.Require().NoError(err)
	return inv
}

func (s *ServiceSuite) TestCreate() {
	s.shortener.EXPECT().
		Shorten(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u string) string {
			s.True(strings.HasPrefix(u, "http://localhost:5173/#/accept-credential?oob="))
			return "http://localhost:3001/i/Ab3dEf9h"
		})
	var mirrored models.Invitation
	s.mirror.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, inv models.Invitation) error {
		mirrored = inv
		return nil
	})

	inv, err := s.svc.Create(s.ctx, credJWT, "UniversityDegree", issuer, models.DefaultTTLMinutes)
	s.Require().NoError(err)

	s.Equal(models.StatusPending, inv.Status)
	s.True(strings.HasPrefix(inv.DeepLink, "openid-credential-offer://?oob="))
	s.Equal("http://localhost:3001/i/Ab3dEf9h", inv.ShortURL)
	s.Equal(inv.ShortURL, inv.RedeemURL())
	s.True(s.now.Add(24 * time.Hour).Equal(inv.ExpiresAt))
	s.Equal("UniversityDegree", inv.CredentialType)
	s.Equal(credJWT, inv.CredentialJWT)
	s.Equal(*inv, mirrored)

	decoded, err := offer.NewDecoder().Decode(s.ctx, inv.DeepLink)
	s.Require().NoError(err)
	s.Equal(inv.ID, decoded.PreAuthorizedCode(), "the pre-authorized code is the invitation id")
	s.Equal(credJWT, decoded.CredentialJWT())
	s.Equal(issuer, decoded.CredentialIssuer)
}

func (s *ServiceSuite) TestCreateSurvivesMirrorAndShortenerFailure() {
	s.shortener.EXPECT().Shorten(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u string) string { return u })
	s.mirror.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	inv, err := s.svc.Create(s.ctx, credJWT, "Badge", issuer, 60)
	s.Require().NoError(err)
	s.Empty(inv.ShortURL)
	s.Equal(inv.HTTPURL, inv.RedeemURL())

	stored, err := s.store.Get(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *ServiceSuite) TestCreateValidation() {
	_, err := s.svc.Create(s.ctx, credJWT, "Badge", issuer, -1)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Create(s.ctx, credJWT, "Badge", "", 10)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestZeroTTLIsImmediatelyExpired() {
	inv := s.create(0)

	got, err := s.svc.Get(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, got.Status)
}

func (s *ServiceSuite) TestGetFlipsExpiryAndPersists() {
	inv := s.create(30)

	got, err := s.svc.Get(s.at(29*time.Minute), inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)

	got, err = s.svc.Get(s.at(31*time.Minute), inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, got.Status)

	stored, err := s.store.Get(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, stored.Status, "flip is persisted")

	again, err := s.svc.Get(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, again.Status, "idempotent even when read with an earlier clock")
}

func (s *ServiceSuite) TestAcceptedInvitationIsNotFlipped() {
	inv := s.create(1)
	s.mirror.EXPECT().UpdateStatus(gomock.Any(), inv.ID, models.StatusAccepted).Return(nil)

	_, err := s.svc.Accept(s.ctx, inv.ID)
	s.Require().NoError(err)

	got, err := s.svc.Get(s.at(time.Hour), inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, got.Status)
}

func (s *ServiceSuite) TestGetMissing() {
	_, err := s.svc.Get(s.ctx, "nope")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("Invitation not found", err.Error())
}

func (s *ServiceSuite) TestListNewestFirst() {
	s.shortener.EXPECT().Shorten(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u string) string { return u }).Times(3)
	s.mirror.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	var ids []string
	for i := range 3 {
		inv, err := s.svc.Create(s.at(time.Duration(i)*time.Minute), credJWT, "Badge", issuer, 2)
		s.Require().NoError(err)
		ids = append(ids, inv.ID)
	}

	list, err := s.svc.List(s.at(3 * time.Minute))
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal([]string{ids[2], ids[1], ids[0]}, []string{list[0].ID, list[1].ID, list[2].ID})
	s.Equal(models.StatusPending, list[0].Status)
	s.Equal(models.StatusExpired, list[1].Status)
	s.Equal(models.StatusExpired, list[2].Status)
}

func (s *ServiceSuite) TestSetStatus() {
	inv := s.create(60)

	s.Run("idempotent overwrite", func() {
		s.mirror.EXPECT().UpdateStatus(gomock.Any(), inv.ID, models.StatusRejected).Return(nil).Times(2)
		for range 2 {
			got, err := s.svc.Reject(s.ctx, inv.ID)
			s.Require().NoError(err)
			s.Equal(models.StatusRejected, got.Status)
		}
	})

	s.Run("mirror failure is not surfaced", func() {
		s.mirror.EXPECT().UpdateStatus(gomock.Any(), inv.ID, models.StatusAccepted).Return(errors.New("down"))
		got, err := s.svc.Accept(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAccepted, got.Status)
	})

	s.Run("unknown status", func() {
		_, err := s.svc.SetStatus(s.ctx, inv.ID, models.Status("archived"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown invitation", func() {
		_, err := s.svc.Accept(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestClearExpired() {
	short := s.create(5)
	long := s.create(120)
	s.mirror.EXPECT().UpdateStatus(gomock.Any(), long.ID, models.StatusRejected).Return(nil)
	_, err := s.svc.Reject(s.ctx, long.ID)
	s.Require().NoError(err)

	n, err := s.svc.ClearExpired(s.at(10 * time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.Get(s.ctx, short.ID)
	s.Error(err)
	_, err = s.store.Get(s.ctx, long.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestClearAll() {
	s.create(60)
	s.create(60)

	s.Run("both sides succeed", func() {
		s.mirror.EXPECT().Clear(gomock.Any()).Return(5, nil)
		result, err := s.svc.ClearAll(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, result.LocalDeleted)
		s.Equal(5, result.RemoteDeleted)
	})

	s.Run("remote failure does not block local clear", func() {
		s.create(60)
		s.mirror.EXPECT().Clear(gomock.Any()).Return(0, errors.New("connection refused"))

		result, err := s.svc.ClearAll(s.ctx)
		s.Require().Error(err)
		s.NoError(result.LocalErr)
		s.Equal(1, result.LocalDeleted)
		s.True(dErrors.HasCode(result.RemoteErr, dErrors.CodeUnavailable))

		left, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		s.Empty(left)
	})
}

func (s *ServiceSuite) TestClearAllLocalFailureStillClearsRemote() {
	db, err := kv.OpenBolt(filepath.Join(s.T().TempDir(), "inv.db"))
	s.Require().NoError(err)
	store, err := kv.NewBolt[models.Invitation](db, "invitations")
	s.Require().NoError(err)
	s.Require().NoError(db.Close())

	svc := New(store, WithMirror(s.mirror))
	s.mirror.EXPECT().Clear(gomock.Any()).Return(3, nil)

	result, err := svc.ClearAll(s.ctx)
	s.Require().Error(err)
	s.Error(result.LocalErr)
	s.NoError(result.RemoteErr)
	s.Equal(3, result.RemoteDeleted)
}

func (s *ServiceSuite) TestServerModeKeepsPostedStatus() {
	svc := New(kv.NewMemory[models.Invitation](), WithoutExpiry())
	past := s.now.Add(-time.Hour)
	s.Require().NoError(svc.Put(s.ctx, models.Invitation{ID: "inv-1", Status: models.StatusPending, CreatedAt: past, ExpiresAt: past}))

	got, err := svc.Get(s.ctx, "inv-1")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)

	s.True(dErrors.HasCode(svc.Put(s.ctx, models.Invitation{}), dErrors.CodeBadRequest))
	s.True(dErrors.HasCode(svc.Delete(s.ctx, "missing"), dErrors.CodeNotFound))
	s.NoError(svc.Delete(s.ctx, "inv-1"))
}
