package ledger

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rgehrsitz/finsight/internal/calculation"
	"github.com/rgehrsitz/finsight/internal/domain"
	"github.com/rgehrsitz/finsight/internal/store"
	"go.uber.org/zap"
)

// HealthDocKey is the store key of a user's health profile.
func HealthDocKey(userID string) string { return "users/" + userID + "/financialData/profile" }

// HealthTracker recomputes and persists health scores. Aggregation stays
// pure; this type owns the read-modify-write around it.
type HealthTracker struct {
	store store.Store
	log   *zap.Logger

	Now func() time.Time
}

// NewHealthTracker creates a tracker backed by s.
func NewHealthTracker(s store.Store, log *zap.Logger) *HealthTracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthTracker{store: s, log: log.With(zap.String("module", "health")), Now: time.Now}
}

// Profile returns the stored profile, or store.ErrNotFound.
func (h *HealthTracker) Profile(ctx context.Context, userID string) (*domain.HealthProfile, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	p := &domain.HealthProfile{}
	if err := h.store.Get(ctx, HealthDocKey(userID), p); err != nil {
		return nil, err
	}
	return p, nil
}

// Recompute aggregates factors and stores them with the new score. The
// score it replaces becomes PreviousScore.
func (h *HealthTracker) Recompute(ctx context.Context, userID string, factors []domain.WeightedFactor) (*domain.HealthProfile, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	factors = append([]domain.WeightedFactor(nil), factors...)
	return h.update(ctx, userID, func(p *domain.HealthProfile) ([]domain.WeightedFactor, error) {
		return factors, nil
	})
}

// UpdateFactor replaces the score of one stored factor and recomputes.
func (h *HealthTracker) UpdateFactor(ctx context.Context, userID string, index int, score float64) (*domain.HealthProfile, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 100 {
		return nil, &calculation.InvalidInputError{Field: "score", Value: strconv.FormatFloat(score, 'f', -1, 64), Reason: "must be between 0 and 100"}
	}
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	return h.update(ctx, userID, func(p *domain.HealthProfile) ([]domain.WeightedFactor, error) {
		if p.LastUpdated.IsZero() {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, HealthDocKey(userID))
		}
		if index < 0 || index >= len(p.HealthFactors) {
			return nil, &calculation.InvalidInputError{Field: "factor", Value: strconv.Itoa(index), Reason: "no such factor"}
		}
		factors := append([]domain.WeightedFactor(nil), p.HealthFactors...)
		factors[index].Score = score
		return factors, nil
	})
}

// update rescores the stored profile with the factors chosen by pick,
// which sees the stored profile (zero when none exists). The read and
// the write are one atomic store update.
func (h *HealthTracker) update(ctx context.Context, userID string, pick func(p *domain.HealthProfile) ([]domain.WeightedFactor, error)) (*domain.HealthProfile, error) {
	var (
		pickErr  error
		previous int
	)
	profile := &domain.HealthProfile{}
	err := h.store.Update(ctx, HealthDocKey(userID), profile, func() error {
		factors, err := pick(profile)
		if err != nil {
			pickErr = err
			return err
		}
		previous = profile.HealthScore
		*profile = domain.HealthProfile{
			HealthFactors: factors,
			HealthScore:   calculation.Aggregate(factors),
			PreviousScore: previous,
			LastUpdated:   h.Now().UTC(),
		}
		return nil
	})
	if pickErr != nil {
		return nil, pickErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save health profile: %w", err)
	}

	h.log.Debug("Health score recomputed",
		zap.String("user", userID),
		zap.Int("score", profile.HealthScore),
		zap.Int("change", calculation.ScoreChange(previous, profile.HealthScore)))
	return profile, nil
}

// Watch streams the user's profile each time it changes. The channel is
// closed when ctx is done.
func (h *HealthTracker) Watch(ctx context.Context, userID string) (<-chan domain.HealthProfile, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	events, err := h.store.Subscribe(ctx, HealthDocKey(userID))
	if err != nil {
		return nil, err
	}
	out := make(chan domain.HealthProfile)
	go func() {
		defer close(out)
		for ev := range events {
			var p domain.HealthProfile
			if err := ev.Decode(&p); err != nil {
				h.log.Warn("skipping undecodable profile", zap.String("user", userID), zap.Error(err))
				continue
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
