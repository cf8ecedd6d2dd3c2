package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	minRating        = 1
	maxRating        = 5
	maxCommentLength = 500
)

// Service manages reviews and keeps the product rating cache current.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*ReviewDTO, error)
	List(ctx context.Context, filter Filter) ([]ReviewDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ReviewDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*ReviewDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// CreateInput is the payload of a new review.
type CreateInput struct {
	ProductID uuid.UUID
	Rating    int
	Comment   string
}

// UpdateInput changes rating and/or comment.
type UpdateInput struct {
	Rating  *int
	Comment *string
}

type ratingRecomputer interface {
	RecomputeAverageRating(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    *Repository
	tx      txRunner
	ratings ratingRecomputer
}

// NewService wires the review service.
func NewService(repo *Repository, tx txRunner, ratings ratingRecomputer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ratings == nil {
		return nil, fmt.Errorf("rating recomputer required")
	}
	return &service{repo: repo, tx: tx, ratings: ratings}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*ReviewDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	comment, err := normalizeComment(input.Comment)
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		ProductID: input.ProductID,
		UserID:    userID,
		Rating:    input.Rating,
		Comment:   comment,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.ProductExists(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeValidation, "product not found")
		}
		if err := repo.Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this product")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert review")
		}
		_, err = s.ratings.RecomputeAverageRating(ctx, tx, input.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, review.ID)
}

func (s *service) List(ctx context.Context, filter Filter) ([]ReviewDTO, error) {
	if filter.Rating != nil {
		if err := validateRating(*filter.Rating); err != nil {
			return nil, err
		}
	}
	reviews, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	out := make([]ReviewDTO, len(reviews))
	for i := range reviews {
		out[i] = NewReviewDTO(&reviews[i])
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ReviewDTO, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reviewNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	dto := NewReviewDTO(review)
	return &dto, nil
}

// Update edits the caller's own review. Reviews written by someone else are
// reported as not found.
func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*ReviewDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := s.loadOwned(ctx, repo, id, userID)
		if err != nil {
			return err
		}
		if input.Rating != nil {
			if err := validateRating(*input.Rating); err != nil {
				return err
			}
			review.Rating = *input.Rating
		}
		if input.Comment != nil {
			comment, err := normalizeComment(*input.Comment)
			if err != nil {
				return err
			}
			review.Comment = comment
		}
		if err := repo.Update(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
		}
		_, err = s.ratings.RecomputeAverageRating(ctx, tx, review.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the caller's own review and refreshes the product rating.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := s.loadOwned(ctx, repo, id, userID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, review.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		_, err = s.ratings.RecomputeAverageRating(ctx, tx, review.ProductID)
		return err
	})
}

func (s *service) loadOwned(ctx context.Context, repo *Repository, id, userID uuid.UUID) (*models.Review, error) {
	review, err := repo.FindOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reviewNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	return review, nil
}

func validateRating(rating int) error {
	if rating < minRating || rating > maxRating {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}
	return nil
}

func normalizeComment(comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("comment must be at most %d characters", maxCommentLength))
	}
	return comment, nil
}

func reviewNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
}
