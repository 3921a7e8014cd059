package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hatchseed/internal/slots/models"
	"hatchseed/internal/slots/service"
	"hatchseed/internal/slots/service/mocks"
	"hatchseed/internal/slots/store"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/audit/publishers/compliance"
	"hatchseed/pkg/platform/audit/store/memory"
	"hatchseed/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router   chi.Router
	svc      *service.Service
	owner    id.Identity
	reviewer id.Identity
	setID    id.SetID
	t0       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = service.New(
		store.NewInMemoryStore(),
		mocks.NewMockTransactionLedger(ctrl),
		mocks.NewMockEntitlements(ctrl),
		compliance.New(memory.NewInMemoryStore()),
		service.WithLogger(logger),
	)
	h := New(s.svc, logger)

	s.router = chi.NewRouter()
	h.RegisterOwnerRoutes(s.router)
	s.router.Route("/review", h.RegisterReviewerRoutes)

	s.t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.owner = id.OwnerIdentity(id.OwnerID(uuid.New()))
	s.reviewer = id.ReviewerIdentity(id.ReviewerID(uuid.New()))

	rec := s.do(s.reviewer, 0, testutil.NewJSONRequest(s.T(), http.MethodPost, "/review/sets", map[string]string{
		"record_name": "Flock 12",
		"owner_id":    s.owner.OwnerID().String(),
	}))
	s.Require().Equal(http.StatusCreated, rec.Code)
	var set models.SlotSet
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &set))
	s.setID = set.ID
}

func (s *HandlerSuite) do(who id.Identity, at time.Duration, req *http.Request) *httptest.ResponseRecorder {
	req = testutil.AsIdentity(req, who)
	req = testutil.AtTime(req, s.t0.Add(at))
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) slotPath(index string) string {
	return "/sets/" + s.setID.String() + "/slots/" + index
}

func (s *HandlerSuite) upload(at time.Duration, index string) *httptest.ResponseRecorder {
	return s.do(s.owner, at, testutil.NewJSONRequest(s.T(), http.MethodPut, s.slotPath(index), map[string]string{
		"media_ref": "media/" + index,
	}))
}

func (s *HandlerSuite) TestUploadFlow() {
	s.Run("upload returns the owner view", func() {
		rec := s.upload(0, "0")
		s.Require().Equal(http.StatusOK, rec.Code)
		var view models.SetView
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
		s.Equal(models.StatePending, view.Slots[0].State)
		s.True(view.Slots[0].CanDelete)
	})

	s.Run("cooling slot answers 423 with Retry-After", func() {
		rec := s.upload(time.Minute, "1")
		s.Require().Equal(http.StatusLocked, rec.Code)
		s.Equal("300", rec.Header().Get("Retry-After"))

		var body shared.ErrorResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("slot_locked", body.Error)
		s.Require().NotNil(body.RetryAfterSeconds)
		s.Equal(int64(300), *body.RetryAfterSeconds)
	})

	s.Run("occupied slot answers 409", func() {
		rec := s.upload(time.Hour, "0")
		testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "slot_occupied")
	})

	s.Run("non-numeric index", func() {
		rec := s.upload(time.Hour, "first")
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "invalid_input")
	})

	s.Run("unknown body field", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPut, s.slotPath("1"), `{"media_ref":"m","color":"red"}`)
		rec := s.do(s.owner, time.Hour, req)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "bad_request")
	})

	s.Run("delete after the window answers 403", func() {
		rec := s.do(s.owner, time.Hour, testutil.NewRequest(s.T(), http.MethodDelete, s.slotPath("0")))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "delete_window_expired")
	})
}

func (s *HandlerSuite) TestReviewerRoutes() {
	s.Require().Equal(http.StatusOK, s.upload(0, "0").Code)
	base := "/review/sets/" + s.setID.String()

	s.Run("grace-window slot is hidden from the reviewer", func() {
		rec := s.do(s.reviewer, 10*time.Second, testutil.NewRequest(s.T(), http.MethodGet, base))
		s.Require().Equal(http.StatusOK, rec.Code)
		var view models.SetView
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
		s.True(view.Slots[0].IsEmpty())
	})

	s.Run("decision inside grace window answers 409", func() {
		rec := s.do(s.reviewer, 10*time.Second, testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/slots/0/decision", map[string]string{
			"action": "approve",
		}))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "nothing_to_review")
	})

	s.Run("decision after grace window", func() {
		rec := s.do(s.reviewer, 2*time.Minute, testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/slots/0/decision", map[string]string{
			"action":  "decline",
			"message": "out of focus",
		}))
		s.Require().Equal(http.StatusOK, rec.Code)
		var view models.SetView
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
		s.Equal(models.StateRejected, view.Slots[0].State)
	})

	s.Run("approving an incomplete set answers 422", func() {
		rec := s.do(s.reviewer, time.Hour, testutil.NewRequest(s.T(), http.MethodPost, base+"/approve"))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "incomplete_set")
	})

	s.Run("reviewer lists assigned sets", func() {
		rec := s.do(s.reviewer, time.Hour, testutil.NewRequest(s.T(), http.MethodGet, "/review/sets"))
		s.Require().Equal(http.StatusOK, rec.Code)
		var body listResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Len(body.Sets, 1)
	})
}

func (s *HandlerSuite) TestStrangerSeesNotFound() {
	stranger := id.OwnerIdentity(id.OwnerID(uuid.New()))
	rec := s.do(stranger, 0, testutil.NewRequest(s.T(), http.MethodGet, "/sets/"+s.setID.String()))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestOpenRejectsBadOwner() {
	rec := s.do(s.reviewer, 0, testutil.NewJSONRequest(s.T(), http.MethodPost, "/review/sets", map[string]string{
		"record_name": "Flock 13",
		"owner_id":    "not-a-uuid",
	}))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "invalid_input")
}
