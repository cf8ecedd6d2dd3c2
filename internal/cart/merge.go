package cart

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// MergeResult describes what a merge did to the user cart.
type MergeResult struct {
	Cart          *models.Cart
	MovedLines    int
	CombinedLines int
	// ClampedUnits counts units dropped because a combined line exceeded stock.
	ClampedUnits int
	// AlreadyMerged is set when another caller merged the anonymous cart first.
	AlreadyMerged bool
}

// Merge folds the anonymous cart into the user cart and deletes it.
//
// Lines for a product already in the user cart are summed and clamped to the
// product's current stock. The clamp is policy: it never fails the merge and
// shows up only in ClampedUnits, the clamped-units metric and a warning log.
// Lines for other products are re-parented as they are.
func (s *service) Merge(ctx context.Context, anonymous, user *models.Cart) (*MergeResult, error) {
	if anonymous == nil || user == nil {
		return nil, InvalidOwnerError()
	}
	if anonymous.SessionKey == nil || anonymous.UserID != nil || user.UserID == nil || user.SessionKey != nil {
		return nil, InvalidOwnerError()
	}
	if anonymous.ID == user.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot merge a cart into itself")
	}

	started := s.now()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"cart_id":      user.ID.String(),
		"anon_cart_id": anonymous.ID.String(),
		"user_id":      user.UserID.String(),
	})

	result := &MergeResult{Cart: user}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := lockInOrder(ctx, repo, anonymous.ID, user.ID)
		if err != nil {
			return err
		}
		if !found[user.ID] {
			return cartNotFoundError()
		}
		if !found[anonymous.ID] {
			result.AlreadyMerged = true
			return nil
		}

		anonItems, err := repo.LockItems(ctx, anonymous.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock anonymous lines")
		}
		userItems, err := repo.LockItems(ctx, user.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user lines")
		}
		byProduct := make(map[uuid.UUID]models.CartItem, len(userItems))
		for _, item := range userItems {
			byProduct[item.ProductID] = item
		}

		for _, line := range anonItems {
			existing, ok := byProduct[line.ProductID]
			if !ok {
				if err := repo.MoveItem(ctx, line.ID, user.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move cart line")
				}
				result.MovedLines++
				continue
			}

			product, err := s.loadProduct(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			combined := existing.Quantity + line.Quantity
			quantity := min(combined, max(product.StockQuantity, 0))
			result.ClampedUnits += combined - quantity

			if quantity == 0 {
				if _, err := repo.DeleteItem(ctx, user.ID, existing.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete clamped line")
				}
			} else if err := repo.SetQuantity(ctx, existing.ID, quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "combine cart lines")
			}
			if _, err := repo.DeleteItem(ctx, anonymous.ID, line.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete merged line")
			}
			result.CombinedLines++
		}

		if err := repo.DeleteCart(ctx, anonymous.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete anonymous cart")
		}
		return repo.Touch(ctx, user.ID, s.now())
	})

	s.metrics.ObserveMutation(opMerge, s.now().Sub(started), err)
	if err != nil {
		s.metrics.ObserveMerge(metrics.MergeFailed, 0)
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge carts")
		}
		return nil, err
	}

	if result.AlreadyMerged {
		s.metrics.ObserveMerge(metrics.MergeAlreadyMerged, 0)
		s.logg.Info(ctx, "cart.merge.already_merged")
		return result, nil
	}

	s.metrics.ObserveMerge(metrics.MergeMerged, result.ClampedUnits)
	if result.ClampedUnits > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "clamped_units", result.ClampedUnits), "cart.merge.clamped")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"moved_lines":    result.MovedLines,
		"combined_lines": result.CombinedLines,
	}), "cart.merge.completed")
	return result, nil
}

// MergeSessionIntoUser merges the session's cart into the user's cart at
// login. A blank key or a session without a cart is a no-op.
func (s *service) MergeSessionIntoUser(ctx context.Context, sessionKey string, userID uuid.UUID) (*MergeResult, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return &MergeResult{}, nil
	}
	if userID == uuid.Nil {
		return nil, InvalidOwnerError()
	}

	anonymous, err := s.repo.FindByOwner(ctx, SessionOwner(sessionKey))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &MergeResult{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart")
	}

	user, err := s.ResolveCart(ctx, UserOwner(userID))
	if err != nil {
		return nil, err
	}
	return s.Merge(ctx, anonymous, user)
}

// lockInOrder locks the carts in ascending id order so two merges touching
// the same carts cannot deadlock. It reports which carts still exist.
func lockInOrder(ctx context.Context, repo *Repository, ids ...uuid.UUID) (map[uuid.UUID]bool, error) {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})

	found := make(map[uuid.UUID]bool, len(ordered))
	for _, id := range ordered {
		_, err := repo.LockCart(ctx, id)
		switch {
		case err == nil:
			found[id] = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			found[id] = false
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
	}
	return found, nil
}
