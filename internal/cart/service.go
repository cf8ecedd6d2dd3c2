package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	opAddItem        = "add_item"
	opUpdateQuantity = "update_quantity"
	opRemoveItem     = "remove_item"
	opClear          = "clear"
	opMerge          = "merge"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// catalog is the read side of the product store. Reads happen on the
// caller's transaction so stock is seen after the cart lock is held.
type catalog interface {
	GetProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
}

// Service owns every quantity, stock and ownership rule of the cart.
type Service interface {
	ResolveCart(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, cart *models.Cart, productID uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, cart *models.Cart, itemID uuid.UUID, quantity int) (*UpdateResult, error)
	RemoveItem(ctx context.Context, cart *models.Cart, itemID uuid.UUID) error
	Clear(ctx context.Context, cart *models.Cart) error
	Summarize(ctx context.Context, cart *models.Cart) (*Summary, error)
	Merge(ctx context.Context, anonymous, user *models.Cart) (*MergeResult, error)
	MergeSessionIntoUser(ctx context.Context, sessionKey string, userID uuid.UUID) (*MergeResult, error)
}

// UpdateResult describes the line after UpdateQuantity. Removed is set when
// the requested quantity was zero and the line was deleted.
type UpdateResult struct {
	Item     *models.CartItem
	Quantity int
	Removed  bool
}

// ServiceParams groups the dependencies of the cart service.
type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Catalog catalog
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    *Repository
	tx      txRunner
	catalog catalog
	metrics *metrics.CartMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		catalog: params.Catalog,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// ResolveCart returns the owner's cart, creating it lazily.
func (s *service) ResolveCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
	}
	return cart, nil
}

// AddItem adds quantity units of a product, merging into an existing line.
func (s *service) AddItem(ctx context.Context, cart *models.Cart, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if cart == nil {
		return nil, InvalidOwnerError()
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}

	var line *models.CartItem
	err := s.mutate(ctx, opAddItem, cart.ID, func(repo *Repository, tx *gorm.DB) error {
		product, err := s.loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !product.IsAvailable {
			return ProductUnavailableError(product.Name)
		}

		existing, err := repo.GetLine(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		candidate := quantity
		if existing != nil {
			candidate += existing.Quantity
		}
		if candidate > product.StockQuantity {
			s.metrics.IncStockRejection(opAddItem)
			return InsufficientStockError(product.StockQuantity)
		}

		if existing == nil {
			line = &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: candidate}
			if err := repo.CreateItem(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
			}
			return nil
		}
		if err := repo.SetQuantity(ctx, existing.ID, candidate); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		existing.Quantity = candidate
		line = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateQuantity sets a line's quantity; zero deletes the line.
func (s *service) UpdateQuantity(ctx context.Context, cart *models.Cart, itemID uuid.UUID, quantity int) (*UpdateResult, error) {
	if cart == nil {
		return nil, InvalidOwnerError()
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	result := &UpdateResult{Quantity: quantity}
	err := s.mutate(ctx, opUpdateQuantity, cart.ID, func(repo *Repository, tx *gorm.DB) error {
		item, err := repo.GetItem(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return CartItemNotFoundError()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		if quantity == 0 {
			if _, err := repo.DeleteItem(ctx, cart.ID, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
			}
			result.Removed = true
			return nil
		}

		product, err := s.loadProduct(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		if quantity > product.StockQuantity {
			s.metrics.IncStockRejection(opUpdateQuantity)
			return InsufficientStockError(product.StockQuantity)
		}
		if err := repo.SetQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		item.Quantity = quantity
		result.Item = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem deletes a line. Removing a line twice reports not found.
func (s *service) RemoveItem(ctx context.Context, cart *models.Cart, itemID uuid.UUID) error {
	if cart == nil {
		return InvalidOwnerError()
	}
	return s.mutate(ctx, opRemoveItem, cart.ID, func(repo *Repository, _ *gorm.DB) error {
		deleted, err := repo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		if deleted == 0 {
			return CartItemNotFoundError()
		}
		return nil
	})
}

// Clear empties the cart; the cart row itself survives.
func (s *service) Clear(ctx context.Context, cart *models.Cart) error {
	if cart == nil {
		return InvalidOwnerError()
	}
	return s.mutate(ctx, opClear, cart.ID, func(repo *Repository, _ *gorm.DB) error {
		if _, err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
}

// mutate runs fn in a transaction whose first statement locks the cart row.
func (s *service) mutate(ctx context.Context, op string, cartID uuid.UUID, fn func(repo *Repository, tx *gorm.DB) error) error {
	started := s.now()
	ctx = s.logg.WithCartID(ctx, cartID.String())

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockCart(ctx, cartID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return cartNotFoundError()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if err := fn(repo, tx); err != nil {
			return err
		}
		return repo.Touch(ctx, cartID, s.now())
	})

	s.metrics.ObserveMutation(op, s.now().Sub(started), err)
	if err != nil && pkgerrors.As(err) == nil {
		err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
	}
	if err != nil && hasCode(err, pkgerrors.CodeDependency) {
		s.logg.Error(ctx, "cart."+op+".failed", err)
	}
	return err
}

func (s *service) loadProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	product, err := s.catalog.GetProduct(ctx, tx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ProductNotFoundError(productID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
