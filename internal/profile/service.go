// Package profile manages comedian profiles.
package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gigbook/internal/domain"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

// Profile is a comedian profile as served to its owner.
type Profile struct {
	models.Comedian
	IsNewUser bool `json:"isNewUser"`
}

// Patch holds the fields a comedian may change. Nil means unchanged.
type Patch struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Bio   *string `json:"bio"`
}

type Service struct {
	store  store.Store
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(st store.Store, now func() time.Time, logger zerolog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, now: now, logger: logger.With().Str("component", "profile").Logger()}
}

// Get returns the caller's profile, or a default built from the claim when
// none has been saved yet.
func (s *Service) Get(ctx context.Context, claim models.IdentityClaim) (*Profile, error) {
	if claim.SubjectID == "" {
		return nil, domain.ErrUnauthenticated
	}
	c, err := s.store.GetComedian(ctx, claim.SubjectID)
	if errors.Is(err, store.ErrNotFound) {
		return &Profile{
			Comedian: models.Comedian{
				ID:    claim.SubjectID,
				Email: strings.ToLower(claim.Email),
				Name:  claim.DisplayName,
			},
			IsNewUser: true,
		}, nil
	}
	if err != nil {
		return nil, store.Classify(err, "comedian", claim.SubjectID)
	}
	return &Profile{Comedian: *c}, nil
}

// Update merges patch into the caller's profile, creating it if absent.
func (s *Service) Update(ctx context.Context, claim models.IdentityClaim, patch Patch) (*models.Comedian, error) {
	if claim.SubjectID == "" {
		return nil, domain.ErrUnauthenticated
	}

	now := s.now()
	c, err := s.store.GetComedian(ctx, claim.SubjectID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c = &models.Comedian{
			ID:        claim.SubjectID,
			Name:      claim.DisplayName,
			CreatedAt: now,
		}
	case err != nil:
		return nil, store.Classify(err, "comedian", claim.SubjectID)
	}

	// The identity provider owns the email.
	c.Email = strings.ToLower(claim.Email)
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		c.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Bio != nil {
		c.Bio = *patch.Bio
	}
	if c.Name == "" {
		c.Name = c.Email
	}
	c.UpdatedAt = now

	if err := s.store.Apply(ctx, store.NewBatch().PutComedian(c)); err != nil {
		return nil, store.Classify(err, "comedian", c.ID)
	}
	s.logger.Info().Str("comedian_id", c.ID).Msg("profile saved")
	return c, nil
}

// ListComedians returns every saved profile, sorted by name.
func (s *Service) ListComedians(ctx context.Context) ([]models.Comedian, error) {
	cs, err := s.store.ListComedians(ctx)
	if err != nil {
		return nil, domain.Upstream("store", err)
	}
	return cs, nil
}
