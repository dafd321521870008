// ABOUTME: Scheduler owns the spaced-repetition state machine for cards
// ABOUTME: NEW -> LEARNING -> REVIEW with a bootstrap ladder, then ease-scaled intervals
package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
)

// Clock is the injectable time source
type Clock func() time.Time

// Ladder holds the fixed bootstrap intervals in days
var Ladder = []int{1, 3, 7, 15, 30, 60}

const (
	// DefaultSuccessRateAlpha weights the newest outcome in the success rate
	DefaultSuccessRateAlpha = 0.3
	// graduateStep is the ladder position at which a card enters REVIEW
	graduateStep = 2
	// failedInterval is the interval after a failed review
	failedInterval = 1
)

// ReviewInput is one review event. A zero ReviewedAt means now.
type ReviewInput struct {
	Quality      int
	ResponseTime float64
	ReviewedAt   time.Time
}

// ReviewOutcome reports the card after a review and the appended history row
type ReviewOutcome struct {
	Card          models.Card      `json:"card"`
	Review        models.Review    `json:"review"`
	PreviousState models.CardState `json:"previous_state"`
}

func schedulingError(field, reason string) error {
	return fmt.Errorf("%w: %w", models.ErrScheduling, models.NewValidationError(field, reason))
}

// Schedule computes the card's next state for a review. It is pure: the
// input card is not modified and nothing is persisted.
func Schedule(card models.Card, in ReviewInput, alpha float64) (models.Card, models.Review, error) {
	if in.Quality < 1 || in.Quality > 5 {
		return card, models.Review{}, schedulingError("quality", "must be within [1,5]")
	}
	if in.ResponseTime < 0 || math.IsNaN(in.ResponseTime) {
		return card, models.Review{}, schedulingError("response_time", "must not be negative")
	}
	if in.ReviewedAt.IsZero() {
		return card, models.Review{}, schedulingError("reviewed_at", "is required")
	}
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSuccessRateAlpha
	}

	next := card
	review := models.Review{
		CardID:       card.ID,
		ReviewedAt:   in.ReviewedAt.UTC(),
		Quality:      in.Quality,
		ResponseTime: in.ResponseTime,
	}

	outcome := 0.0
	if review.Passed() {
		outcome = 1.0
	}
	if card.ReviewCount == 0 {
		next.SuccessRate = outcome
	} else {
		next.SuccessRate = alpha*outcome + (1-alpha)*card.SuccessRate
	}
	next.ReviewCount = card.ReviewCount + 1

	if !review.Passed() {
		next.IntervalDays = failedInterval
		next.LadderStep = 0
		next.State = models.StateLearning
	} else {
		next.EaseFactor = nextEase(card.EaseFactor, in.Quality)
		if card.LadderStep < len(Ladder) {
			next.IntervalDays = Ladder[card.LadderStep]
			next.LadderStep = card.LadderStep + 1
		} else {
			next.IntervalDays = int(math.Round(float64(card.IntervalDays) * next.EaseFactor))
		}
		if next.LadderStep >= graduateStep {
			next.State = models.StateReview
		} else {
			next.State = models.StateLearning
		}
	}

	review.NextInterval = next.IntervalDays
	next.NextReview = models.Day(review.ReviewedAt).AddDate(0, 0, next.IntervalDays)
	return next, review, nil
}

func nextEase(ease float64, quality int) float64 {
	if ease == 0 {
		ease = models.DefaultEaseFactor
	}
	miss := float64(5 - quality)
	return math.Max(models.MinEaseFactor, ease+(0.1-miss*(0.08+miss*0.02)))
}

// Scheduler applies reviews and answers due-card queries
type Scheduler struct {
	store *sqlite.Store
	alpha float64
	clock Clock
	log   *logger.Logger
}

// NewScheduler creates a scheduler; a nil clock uses time.Now
func NewScheduler(store *sqlite.Store, alpha float64, clock Clock, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSuccessRateAlpha
	}
	return &Scheduler{
		store: store,
		alpha: alpha,
		clock: clock,
		log:   logger.OrNop(log).Component("scheduler"),
	}
}

// Review records one review of cardID in its own short transaction.
// Rejected input leaves the card untouched.
func (s *Scheduler) Review(ctx context.Context, cardID string, in ReviewInput) (*ReviewOutcome, error) {
	if in.ReviewedAt.IsZero() {
		in.ReviewedAt = s.clock()
	}
	// reject bad input before taking the write turn
	if _, _, err := Schedule(models.Card{}, in, s.alpha); err != nil {
		return nil, err
	}

	batch, err := s.store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = batch.Rollback() }()

	card, err := batch.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	last, err := batch.LastReview(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if in.ReviewedAt.Before(card.CreatedAt) {
		return nil, schedulingError("reviewed_at", "precedes card creation")
	}
	if last != nil && !in.ReviewedAt.After(last.ReviewedAt) {
		return nil, schedulingError("reviewed_at", "must be after the previous review")
	}

	next, review, err := Schedule(*card, in, s.alpha)
	if err != nil {
		return nil, err
	}
	if err := batch.ApplyReview(ctx, &next, &review); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}

	s.log.Info("card reviewed",
		"card_id", cardID,
		"quality", in.Quality,
		"state", next.State,
		"interval_days", next.IntervalDays,
		"next_review", next.NextReview.Format("2006-01-02"))
	return &ReviewOutcome{Card: next, Review: review, PreviousState: card.State}, nil
}

// Due returns the cards due today, oldest first, harder first on ties
func (s *Scheduler) Due(ctx context.Context) ([]models.Card, error) {
	return s.store.DueCards(ctx, models.Day(s.clock()))
}

// Today is the scheduler clock's current day
func (s *Scheduler) Today() time.Time {
	return models.Day(s.clock())
}
