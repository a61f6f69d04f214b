package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"slateboard/domain"
)

// Store is the persistence surface the reminder scheduler needs.
type Store interface {
	DueCards(ctx context.Context, now time.Time) ([]domain.Card, error)
	BoardRecipients(ctx context.Context, boardID string) ([]string, error)
	InsertNotification(ctx context.Context, n domain.Notification) error
	MarkCardNotified(ctx context.Context, cardID string) error
}

// Broadcaster pushes events to connected clients.
type Broadcaster interface {
	PublishUser(ctx context.Context, userID string, ev domain.Event)
	PublishBoard(ctx context.Context, boardID string, ev domain.Event)
}

// Deduper guards a card's reminder fan-out across instances.
type Deduper interface {
	Claim(ctx context.Context, cardID string) (bool, error)
	Release(ctx context.Context, cardID string) error
}

// Scheduler periodically scans for overdue cards and fans a reminder
// notification out to every member of the card's board. Cycles never
// overlap: a tick that fires while the previous cycle is still running is
// skipped.
type Scheduler struct {
	logger    *log.Logger
	store     Store
	broadcast Broadcaster
	dedupe    Deduper
	interval  time.Duration
	now       func() time.Time

	running atomic.Bool
}

// New creates a reminder scheduler. dedupe may be nil when a single
// instance is running.
func New(logger *log.Logger, store Store, broadcast Broadcaster, dedupe Deduper, interval time.Duration) *Scheduler {
	return &Scheduler{
		logger:    logger,
		store:     store,
		broadcast: broadcast,
		dedupe:    dedupe,
		interval:  interval,
		now:       time.Now,
	}
}

// Run ticks at the configured interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one reminder cycle. It returns immediately if another
// cycle is already in progress.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("reminder cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	now := s.now()
	cards, err := s.store.DueCards(ctx, now)
	if err != nil {
		s.logger.Errorf("scan due cards: %v", err)
		return
	}
	for _, card := range cards {
		s.remind(ctx, card, now)
	}
}

// remind handles one due card. Errors are logged and swallowed so a single
// failing card does not abort the rest of the cycle.
func (s *Scheduler) remind(ctx context.Context, card domain.Card, now time.Time) {
	if s.dedupe != nil {
		claimed, err := s.dedupe.Claim(ctx, card.ID)
		if err != nil {
			s.logger.WithField("card", card.ID).Errorf("claim reminder: %v", err)
		} else if !claimed {
			return
		}
	}

	recipients, err := s.store.BoardRecipients(ctx, card.BoardID)
	if err != nil {
		s.logger.WithField("card", card.ID).Errorf("resolve recipients: %v", err)
		s.release(ctx, card.ID)
		return
	}

	message := fmt.Sprintf("Card %q is due", card.Title)
	for _, userID := range recipients {
		n := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			CardID:    card.ID,
			BoardID:   card.BoardID,
			Message:   message,
			CreatedAt: now,
		}
		if err := s.store.InsertNotification(ctx, n); err != nil {
			s.logger.WithFields(log.Fields{"card": card.ID, "user": userID}).
				Errorf("insert notification: %v", err)
			continue
		}
		s.broadcast.PublishUser(ctx, userID, domain.Event{
			Name: domain.EventNewNotification,
			Payload: domain.NotificationPayload{
				UserID:  userID,
				Message: message,
				CardID:  card.ID,
				BoardID: card.BoardID,
			},
		})
	}

	// Viewers of the board refresh so the due-date badge updates.
	s.broadcast.PublishBoard(ctx, card.BoardID, domain.Event{
		Name:    domain.EventBoardUpdated,
		Payload: map[string]string{"boardId": card.BoardID},
	})

	if err := s.store.MarkCardNotified(ctx, card.ID); err != nil {
		// The card stays eligible and the next cycle repeats the fan-out.
		s.logger.WithField("card", card.ID).Errorf("mark notified: %v", err)
		s.release(ctx, card.ID)
	}
}

func (s *Scheduler) release(ctx context.Context, cardID string) {
	if s.dedupe == nil {
		return
	}
	if err := s.dedupe.Release(ctx, cardID); err != nil {
		s.logger.WithField("card", cardID).Errorf("release reminder claim: %v", err)
	}
}
