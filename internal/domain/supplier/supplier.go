// Package supplier keeps the minimal supplier records the payment workflow reads.
package supplier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/pkg/logger"
)

// WHTCategory selects the withholding tax rate applied to a supplier.
type WHTCategory string

const (
	WHTStandard  WHTCategory = "standard"
	WHTServices  WHTCategory = "services"
	WHTSupplies  WHTCategory = "supplies"
	WHTEquipment WHTCategory = "equipment"
	WHTOther     WHTCategory = "other"
)

// WHTCategories lists every category.
var WHTCategories = []WHTCategory{WHTStandard, WHTServices, WHTSupplies, WHTEquipment, WHTOther}

// Valid reports whether c is a known category.
func (c WHTCategory) Valid() bool {
	for _, v := range WHTCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Supplier is a vendor the institution buys from.
type Supplier struct {
	ID          id.ID       `db:"id" json:"id"`
	Code        string      `db:"code" json:"code"`
	Name        string      `db:"name" json:"name"`
	WHTSubject  bool        `db:"wht_subject" json:"whtSubject"`
	WHTCategory WHTCategory `db:"wht_category" json:"whtCategory"`
	Active      bool        `db:"active" json:"active"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	CreatedBy   string      `db:"created_by" json:"createdBy"`
}

// Validate checks required fields.
func (s *Supplier) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return apperror.NewValidation("supplier code is required").WithDetail("field", "code")
	}
	if strings.TrimSpace(s.Name) == "" {
		return apperror.NewValidation("supplier name is required").WithDetail("field", "name")
	}
	if !s.WHTCategory.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown withholding tax category %q", s.WHTCategory)).
			WithDetail("field", "whtCategory")
	}
	return nil
}

// Repository persists suppliers.
type Repository interface {
	Create(ctx context.Context, s *Supplier) error
	GetByID(ctx context.Context, supplierID id.ID) (*Supplier, error)
	GetByCode(ctx context.Context, code string) (*Supplier, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supplier], error)
}

// CreateCommand registers a supplier.
type CreateCommand struct {
	Code        string
	Name        string
	WHTSubject  bool
	WHTCategory WHTCategory
}

// Service manages the supplier directory.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a supplier service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Create registers an active supplier. Codes are unique.
func (s *Service) Create(ctx context.Context, actor string, cmd CreateCommand) (*Supplier, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if cmd.WHTCategory == "" {
		cmd.WHTCategory = WHTStandard
	}

	sup := &Supplier{
		ID:          id.New(),
		Code:        strings.TrimSpace(cmd.Code),
		Name:        strings.TrimSpace(cmd.Name),
		WHTSubject:  cmd.WHTSubject,
		WHTCategory: cmd.WHTCategory,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   actor,
	}
	if err := sup.Validate(); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByCode(ctx, sup.Code)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if existing != nil {
			return apperror.NewConflict(fmt.Sprintf("supplier code %q already exists", sup.Code)).
				WithDetail("field", "code")
		}
		return s.repo.Create(ctx, sup)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "supplier created", "id", sup.ID, "code", sup.Code, "actor", actor)
	return sup, nil
}

// Get returns a supplier by id.
func (s *Service) Get(ctx context.Context, supplierID id.ID) (*Supplier, error) {
	return s.repo.GetByID(ctx, supplierID)
}

// List returns suppliers matching filter. Search matches code or name.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supplier], error) {
	return s.repo.List(ctx, filter)
}
