// Package cloakroom implements the intake and return workflows of the desk.
package cloakroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/hramba/internal/capacity"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/store"
)

// Store is the item persistence used by the workflows.
type Store interface {
	CreateItem(ctx context.Context, draft model.ItemDraft, acceptedBy string) (*model.Item, error)
	GetItemByQRCode(ctx context.Context, code string) (*model.Item, error)
	ListItemsByStatus(ctx context.Context, status model.ItemStatus) ([]model.Item, error)
	MarkItemReturned(ctx context.Context, code, returnedBy string) (*model.Item, error)
	CountStoredItems(ctx context.Context, department model.Department) (int, error)
	CountStoredByDepartment(ctx context.Context) (map[model.Department]int, error)
}

// Observer is told about workflow outcomes.
type Observer interface {
	ItemAccepted(item *model.Item)
	IntakeRejected(department model.Department, reason string)
	ItemReturned(item *model.Item)
}

// Rejection reasons passed to Observer.IntakeRejected.
const (
	RejectedInvalid  = "invalid"
	RejectedCapacity = "capacity"
)

type nopObserver struct{}

func (nopObserver) ItemAccepted(*model.Item)                {}
func (nopObserver) IntakeRejected(model.Department, string) {}
func (nopObserver) ItemReturned(*model.Item)                {}

// Service runs the intake and return workflows over a Store.
type Service struct {
	store    Store
	policy   *capacity.Policy
	observer Observer
	validate *validator.Validate

	// locks serialize the capacity check and insert per department.
	locks map[model.Department]*sync.Mutex
}

// New returns a Service. A nil observer discards events.
func New(s Store, policy *capacity.Policy, observer Observer) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	locks := make(map[model.Department]*sync.Mutex, len(model.Departments))
	for _, d := range model.Departments {
		locks[d] = &sync.Mutex{}
	}
	return &Service{
		store:    s,
		policy:   policy,
		observer: observer,
		validate: newValidator(),
		locks:    locks,
	}
}

// AcceptItem validates draft, checks the department has room and records
// the item. It returns *ValidationError or *CapacityExceededError when the
// deposit is refused; in both cases nothing is stored.
func (s *Service) AcceptItem(ctx context.Context, draft model.ItemDraft, actor string) (*model.Item, error) {
	if err := s.validateDraft(draft); err != nil {
		s.observer.IntakeRejected(draft.Department, RejectedInvalid)
		return nil, err
	}

	mu := s.locks[draft.Department]
	mu.Lock()
	defer mu.Unlock()

	stored, err := s.store.CountStoredItems(ctx, draft.Department)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAccept(draft.Department, stored) {
		limit, _ := s.policy.Limit(draft.Department)
		s.observer.IntakeRejected(draft.Department, RejectedCapacity)
		slog.Warn("department full", "department", draft.Department, "limit", limit, "user", actor)
		return nil, &CapacityExceededError{Department: draft.Department, Limit: limit}
	}

	item, err := s.store.CreateItem(ctx, draft, actor)
	if err != nil {
		return nil, err
	}

	s.observer.ItemAccepted(item)
	slog.Info("item accepted", "code", item.QRCode, "department", item.Department, "user", actor)
	return item, nil
}

// ReturnItem hands back the item with the given code. The code must match
// exactly. It returns *NotFoundError for unknown codes and
// *InvalidTransitionError when the item was already returned.
func (s *Service) ReturnItem(ctx context.Context, code, actor string) (*model.Item, error) {
	item, err := s.store.GetItemByQRCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &NotFoundError{QRCode: code}
	}
	if item.Status != model.ItemStatusStored {
		return nil, &InvalidTransitionError{QRCode: code, Status: item.Status}
	}

	item, err = s.store.MarkItemReturned(ctx, code, actor)
	switch {
	case errors.Is(err, store.ErrItemAlreadyReturned):
		// Another terminal returned it between lookup and update.
		return nil, &InvalidTransitionError{QRCode: code, Status: model.ItemStatusReturned}
	case errors.Is(err, store.ErrItemNotFound):
		return nil, &NotFoundError{QRCode: code}
	case err != nil:
		return nil, err
	}

	s.observer.ItemReturned(item)
	slog.Info("item returned", "code", item.QRCode, "department", item.Department, "user", actor)
	return item, nil
}

// ListStoredItems returns items currently in storage in intake order.
func (s *Service) ListStoredItems(ctx context.Context) ([]model.Item, error) {
	return s.list(ctx, model.ItemStatusStored)
}

// ListReturnedItems returns the archive in intake order.
func (s *Service) ListReturnedItems(ctx context.Context) ([]model.Item, error) {
	return s.list(ctx, model.ItemStatusReturned)
}

func (s *Service) list(ctx context.Context, status model.ItemStatus) ([]model.Item, error) {
	items, err := s.store.ListItemsByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// FindItem returns the item with the given code or *NotFoundError.
func (s *Service) FindItem(ctx context.Context, code string) (*model.Item, error) {
	item, err := s.store.GetItemByQRCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &NotFoundError{QRCode: code}
	}
	return item, nil
}

// DepartmentOccupancy is the fill level of one department.
type DepartmentOccupancy struct {
	Department model.Department `json:"department"`
	Stored     int              `json:"stored"`
	Limit      int              `json:"limit,omitempty"`
	Bounded    bool             `json:"bounded"`
}

// Occupancy is the fill level of every department.
type Occupancy struct {
	Departments []DepartmentOccupancy `json:"departments"`
	Total       int                   `json:"total"`
}

// Occupancy reports how many items each department holds against its limit.
func (s *Service) Occupancy(ctx context.Context) (*Occupancy, error) {
	counts, err := s.store.CountStoredByDepartment(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading occupancy: %w", err)
	}

	occ := &Occupancy{Departments: make([]DepartmentOccupancy, 0, len(model.Departments))}
	for _, d := range model.Departments {
		limit, bounded := s.policy.Limit(d)
		occ.Departments = append(occ.Departments, DepartmentOccupancy{
			Department: d,
			Stored:     counts[d],
			Limit:      limit,
			Bounded:    bounded,
		})
		occ.Total += counts[d]
	}
	return occ, nil
}
