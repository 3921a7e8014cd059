package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store    *InMemoryStore
	service  *Service
	ctx      context.Context
	now      time.Time
	owner    id.OwnerID
	reviewer id.ReviewerID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.service = NewService(s.store)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.owner = id.OwnerID(uuid.New())
	s.reviewer = id.ReviewerID(uuid.New())
}

func (s *ServiceSuite) fullSale() Sale {
	var slots [models.SlotCount]models.UploadSlot
	for i := range slots {
		at := s.now.Add(-time.Duration(models.SlotCount-i) * time.Hour)
		slots[i] = models.UploadSlot{
			Index:      i,
			MediaRef:   "media/" + uuid.NewString(),
			UploadedAt: &at,
			State:      models.StateApproved,
		}
	}
	return Sale{
		SetID:      id.SetID(uuid.New()),
		RecordName: "batch 7",
		OwnerID:    s.owner,
		ReviewerID: s.reviewer,
		Slots:      slots,
	}
}

func (s *ServiceSuite) TestRecordSale() {
	s.Run("snapshots slots and upload window", func() {
		sale := s.fullSale()
		txn, err := s.service.RecordSale(s.ctx, sale)
		s.Require().NoError(err)

		s.Equal(sale.Slots, txn.Slots)
		s.Equal(*sale.Slots[0].UploadedAt, txn.FirstUploadAt)
		s.Equal(*sale.Slots[3].UploadedAt, txn.LastUploadAt)
		s.Equal(s.now, txn.RecordedAt)
		s.False(txn.IsVoided())

		stored, err := s.service.Get(s.ctx, txn.ID)
		s.Require().NoError(err)
		s.Equal(txn.SetID, stored.SetID)
	})

	s.Run("rejects a sale with no uploads", func() {
		_, err := s.service.RecordSale(s.ctx, Sale{SetID: id.SetID(uuid.New()), OwnerID: s.owner})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ServiceSuite) TestVoidSale() {
	s.Run("voided sales disappear from listings", func() {
		kept, err := s.service.RecordSale(s.ctx, s.fullSale())
		s.Require().NoError(err)
		voided, err := s.service.RecordSale(s.ctx, s.fullSale())
		s.Require().NoError(err)

		s.Require().NoError(s.service.VoidSale(s.ctx, voided.ID))

		owned, err := s.service.ListForOwner(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Require().Len(owned, 1)
		s.Equal(kept.ID, owned[0].ID)

		reviewed, err := s.service.ListForReviewer(s.ctx, s.reviewer)
		s.Require().NoError(err)
		s.Len(reviewed, 1)

		got, err := s.service.Get(s.ctx, voided.ID)
		s.Require().NoError(err)
		s.True(got.IsVoided())
	})

	s.Run("voiding twice keeps the first instant", func() {
		txn, err := s.service.RecordSale(s.ctx, s.fullSale())
		s.Require().NoError(err)
		s.Require().NoError(s.service.VoidSale(s.ctx, txn.ID))

		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
		s.Require().NoError(s.service.VoidSale(later, txn.ID))

		got, err := s.service.Get(s.ctx, txn.ID)
		s.Require().NoError(err)
		s.Equal(s.now, *got.VoidedAt)
	})

	s.Run("unknown transaction", func() {
		err := s.service.VoidSale(s.ctx, id.TransactionID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListOrdering() {
	first, err := s.service.RecordSale(s.ctx, s.fullSale())
	s.Require().NoError(err)
	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	second, err := s.service.RecordSale(later, s.fullSale())
	s.Require().NoError(err)

	owned, err := s.service.ListForOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(owned, 2)
	s.Equal(second.ID, owned[0].ID)
	s.Equal(first.ID, owned[1].ID)

	other, err := s.service.ListForOwner(s.ctx, id.OwnerID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(other)
}
