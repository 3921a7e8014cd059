package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"hatchseed/internal/conversation/models"
	"hatchseed/internal/conversation/store"
	"hatchseed/internal/events"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/requestcontext"
)

type published struct {
	key id.IdentityKey
	evt events.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(key id.IdentityKey, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{key: key, evt: evt})
}

func (p *recordingPublisher) ofType(t events.Type) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.evt.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	store     *store.InMemoryStore
	publisher *recordingPublisher
	service   *Service
	t0        time.Time
	owner     id.Identity
	reviewer  id.Identity
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.publisher = &recordingPublisher{}
	s.service = New(s.store,
		WithPublisher(s.publisher),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.owner = id.Identity{Role: id.RoleOwner, ID: uuid.New(), Name: "Olu"}
	s.reviewer = id.Identity{Role: id.RoleReviewer, ID: uuid.New(), Name: "Rae"}
}

func (s *ServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(d))
}

func (s *ServiceSuite) start() *models.Conversation {
	conv, err := s.service.Start(s.at(0), s.owner, StartRequest{
		OwnerID:    s.owner.OwnerID(),
		ReviewerID: s.reviewer.ReviewerID(),
		Subject:    "Feed delivery",
		Body:       "When is the next drop?",
	})
	s.Require().NoError(err)
	return conv
}

func (s *ServiceSuite) TestStart() {
	s.Run("notifies the counterpart", func() {
		conv := s.start()
		added := s.publisher.ofType(events.TypeMessageAdded)
		s.Require().Len(added, 1)
		s.Equal(s.reviewer.Key(), added[0].key)
		s.Equal(conv.ID.String(), added[0].evt.Aggregate)

		unread, err := s.service.UnreadCount(s.at(0), s.owner)
		s.Require().NoError(err)
		s.Zero(unread, "the opening message is read by its sender")

		unread, err = s.service.UnreadCount(s.at(0), s.reviewer)
		s.Require().NoError(err)
		s.Equal(1, unread)
	})

	s.Run("outsider cannot start for others", func() {
		outsider := id.OwnerIdentity(id.OwnerID(uuid.New()))
		_, err := s.service.Start(s.at(0), outsider, StartRequest{
			OwnerID:    s.owner.OwnerID(),
			ReviewerID: s.reviewer.ReviewerID(),
			Subject:    "x",
			Body:       "y",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestAppendMessage() {
	conv := s.start()

	s.Run("server assigns sequence and time", func() {
		updated, err := s.service.AppendMessage(s.at(time.Minute), conv.ID, s.reviewer, "Thursday morning")
		s.Require().NoError(err)
		s.Require().Len(updated.Messages, 2)
		last := updated.Messages[1]
		s.Equal(int64(2), last.Seq)
		s.Equal(s.t0.Add(time.Minute), last.SentAt)
		s.Equal("Rae", last.SenderName)

		added := s.publisher.ofType(events.TypeMessageAdded)
		s.Equal(s.owner.Key(), added[len(added)-1].key)
	})

	s.Run("non-participant is forbidden", func() {
		_, err := s.service.AppendMessage(s.at(time.Minute), conv.ID, id.ReviewerIdentity(id.ReviewerID(uuid.New())), "hi")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown conversation", func() {
		_, err := s.service.AppendMessage(s.at(time.Minute), id.ConversationID(uuid.New()), s.owner, "hi")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestAppendMessage_ConcurrentSendersGetDistinctSeqs() {
	conv := s.start()
	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := s.owner
			if i%2 == 0 {
				sender = s.reviewer
			}
			_, err := s.service.AppendMessage(s.at(time.Minute), conv.ID, sender, "msg")
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	final, err := s.service.Get(s.at(time.Hour), conv.ID, s.owner)
	s.Require().NoError(err)
	s.Require().Len(final.Messages, writers+1)
	for i, m := range final.Messages {
		s.Equal(int64(i+1), m.Seq)
	}
}

func (s *ServiceSuite) TestClose() {
	conv := s.start()

	first, err := s.service.Close(s.at(time.Hour), conv.ID, s.reviewer)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, first.Status)

	second, err := s.service.Close(s.at(2*time.Hour), conv.ID, s.owner)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, second.Status)
	s.Equal(first.ClosedAt, second.ClosedAt)

	closed := s.publisher.ofType(events.TypeConversationClosed)
	s.Require().Len(closed, 2, "one event per participant, from the first close only")
	s.ElementsMatch([]id.IdentityKey{s.owner.Key(), s.reviewer.Key()}, []id.IdentityKey{closed[0].key, closed[1].key})

	_, err = s.service.AppendMessage(s.at(3*time.Hour), conv.ID, s.owner, "one more thing")
	s.True(dErrors.HasCode(err, dErrors.CodeConversationClosed))

	_, err = s.service.Close(s.at(time.Hour), conv.ID, id.OwnerIdentity(id.OwnerID(uuid.New())))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestReadCursors() {
	a := s.start()
	b := s.start()
	for i := 0; i < 3; i++ {
		_, err := s.service.AppendMessage(s.at(time.Minute), a.ID, s.reviewer, "ping")
		s.Require().NoError(err)
	}
	_, err := s.service.AppendMessage(s.at(time.Minute), b.ID, s.reviewer, "pong")
	s.Require().NoError(err)

	unread, err := s.service.UnreadCount(s.at(time.Hour), s.owner)
	s.Require().NoError(err)
	s.Equal(4, unread)

	s.Require().NoError(s.service.MarkRead(s.at(time.Hour), a.ID, s.owner))
	unread, err = s.service.UnreadCount(s.at(time.Hour), s.owner)
	s.Require().NoError(err)
	s.Equal(1, unread)

	marked, err := s.service.MarkAllRead(s.at(time.Hour), s.owner)
	s.Require().NoError(err)
	s.Equal(1, marked)

	unread, err = s.service.UnreadCount(s.at(time.Hour), s.owner)
	s.Require().NoError(err)
	s.Zero(unread)

	got, err := s.service.Get(s.at(time.Hour), a.ID, s.owner)
	s.Require().NoError(err)
	s.Len(got.Messages, 4, "marking read never alters content")

	err = s.service.MarkRead(s.at(time.Hour), a.ID, id.OwnerIdentity(id.OwnerID(uuid.New())))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListAndStats() {
	open := s.start()
	closed := s.start()
	_, err := s.service.Close(s.at(time.Minute), closed.ID, s.reviewer)
	s.Require().NoError(err)

	all, err := s.service.List(s.at(time.Hour), s.reviewer, "")
	s.Require().NoError(err)
	s.Len(all, 2)

	onlyOpen, err := s.service.List(s.at(time.Hour), s.reviewer, models.StatusOpen)
	s.Require().NoError(err)
	s.Require().Len(onlyOpen, 1)
	s.Equal(open.ID, onlyOpen[0].ID)
	s.Equal(1, onlyOpen[0].Unread)

	stats, err := s.service.Stats(s.at(time.Hour), s.reviewer.ReviewerID())
	s.Require().NoError(err)
	s.Equal(models.Stats{Total: 2, Open: 1, Closed: 1, Unread: 2}, stats)
}

func (s *ServiceSuite) TestPurgeInactive() {
	conv := s.start()

	n, err := s.service.PurgeInactive(context.Background(), s.t0.Add(9*24*time.Hour))
	s.Require().NoError(err)
	s.Zero(n)

	n, err = s.service.PurgeInactive(context.Background(), s.t0.Add(11*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.service.Get(s.at(0), conv.ID, s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestPurgeRelated() {
	setID := id.SetID(uuid.New())
	related, err := s.service.Start(s.at(0), s.owner, StartRequest{
		OwnerID:      s.owner.OwnerID(),
		ReviewerID:   s.reviewer.ReviewerID(),
		Subject:      "Slot 2 photo",
		Body:         "Is this angle fine?",
		RelatedSetID: &setID,
	})
	s.Require().NoError(err)
	other := s.start()

	n, err := s.service.PurgeRelated(s.at(time.Minute), setID)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.service.Get(s.at(time.Minute), related.ID, s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.Get(s.at(time.Minute), other.ID, s.owner)
	s.NoError(err)
}
