//go:build integration

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
	"hatchseed/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *PostgresStore
	ctx   context.Context
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.db = containers.Postgres(s.T())
	s.store = NewPostgres(s.db)
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) newSet(owner id.OwnerID, reviewer id.ReviewerID) *models.SlotSet {
	set, err := models.NewSlotSet(id.SetID(uuid.New()), "Coop A", owner, reviewer, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, set))
	return set
}

func (s *PostgresStoreSuite) TestRoundTripAndOptimisticSave() {
	set := s.newSet(id.OwnerID(uuid.New()), id.ReviewerID(uuid.New()))

	loaded, err := s.store.FindByID(s.ctx, set.ID)
	s.Require().NoError(err)
	s.Require().NoError(models.DefaultTiming().Upload(loaded, 0, models.UploadInput{
		MediaRef: "media/0.jpg",
		GeoTag:   &models.GeoTag{Latitude: 1.5, Longitude: 2.5},
	}, s.now.Add(time.Minute)))
	s.Require().NoError(s.store.Save(s.ctx, loaded))
	s.Equal(int64(2), loaded.Version)

	s.ErrorIs(s.store.Save(s.ctx, set), sentinel.ErrConflict, "a stale version is rejected")

	reloaded, err := s.store.FindByID(s.ctx, set.ID)
	s.Require().NoError(err)
	s.Equal("media/0.jpg", reloaded.Slots[0].MediaRef)
	s.Require().NotNil(reloaded.Slots[0].GeoTag)
	s.Equal(2.5, reloaded.Slots[0].GeoTag.Longitude)
	s.Equal(models.StatePending, reloaded.Slots[0].State)
}

func (s *PostgresStoreSuite) TestLockInsideTransaction() {
	set := s.newSet(id.OwnerID(uuid.New()), id.ReviewerID(uuid.New()))

	err := txcontext.RunSQL(s.ctx, s.db, 0, func(ctx context.Context, _ *sql.Tx) error {
		return s.store.Lock(ctx, set.ID)
	})
	s.Require().NoError(err)

	err = txcontext.RunSQL(s.ctx, s.db, 0, func(ctx context.Context, _ *sql.Tx) error {
		return s.store.Lock(ctx, id.SetID(uuid.New()))
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListings() {
	reviewer := id.ReviewerID(uuid.New())
	ownerA, ownerB := id.OwnerID(uuid.New()), id.OwnerID(uuid.New())
	s.newSet(ownerA, reviewer)
	s.newSet(ownerA, reviewer)
	s.newSet(ownerB, reviewer)

	sets, err := s.store.ListByOwner(s.ctx, ownerA)
	s.Require().NoError(err)
	s.Len(sets, 2)

	sets, err = s.store.ListByReviewer(s.ctx, reviewer)
	s.Require().NoError(err)
	s.Len(sets, 3)

	owners, err := s.store.OwnersForReviewer(s.ctx, reviewer)
	s.Require().NoError(err)
	s.ElementsMatch([]id.OwnerID{ownerA, ownerB}, owners)
}
