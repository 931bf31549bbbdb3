package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/qrid"
)

// MaxCodeAttempts is how many codes CreateItem tries before giving up.
const MaxCodeAttempts = 5

var (
	// ErrDuplicateQRCode is returned by InsertItem when the code is taken.
	ErrDuplicateQRCode = errors.New("qr code already issued")
	// ErrIdentifierCollision is returned when every generated code collided.
	ErrIdentifierCollision = errors.New("could not generate a unique qr code")
	// ErrItemNotFound is returned when no item carries the given code.
	ErrItemNotFound = errors.New("item not found")
	// ErrItemAlreadyReturned is returned when returning a returned item.
	ErrItemAlreadyReturned = errors.New("item already returned")
)

const itemColumns = `id, qr_code, client_name, client_phone, client_email, description,
	department, deposit_amount, return_amount, deposit_date, expected_return_date,
	discount, bonus_card, status, accepted_by, returned_by, created_at, returned_at`

// InsertItem stores a fully populated item.
func InsertItem(ctx context.Context, db *sqlx.DB, item *model.Item) error {
	_, err := db.NamedExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (:id, :qr_code, :client_name, :client_phone, :client_email, :description,
		         :department, :deposit_amount, :return_amount, :deposit_date, :expected_return_date,
		         :discount, :bonus_card, :status, :accepted_by, :returned_by, :created_at, :returned_at)`,
		item,
	)
	if isUniqueViolation(err, "items.qr_code") {
		return ErrDuplicateQRCode
	}
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetItemByQRCode returns the item with the given code, or nil if none exists.
func GetItemByQRCode(ctx context.Context, db *sqlx.DB, code string) (*model.Item, error) {
	item := &model.Item{}
	err := db.GetContext(ctx, item,
		`SELECT `+itemColumns+` FROM items WHERE qr_code = ?`, code,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItemsByStatus returns items in the given status in intake order.
func ListItemsByStatus(ctx context.Context, db *sqlx.DB, status model.ItemStatus) ([]model.Item, error) {
	var items []model.Item
	err := db.SelectContext(ctx, &items,
		`SELECT `+itemColumns+` FROM items WHERE status = ? ORDER BY seq`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// MarkItemReturned moves a stored item to returned. The status check and the
// update are one statement, so of several concurrent calls for the same code
// exactly one succeeds.
func MarkItemReturned(ctx context.Context, db *sqlx.DB, code, returnedBy string, at time.Time) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET status = ?, returned_by = ?, returned_at = ?
		 WHERE qr_code = ? AND status = ?`,
		model.ItemStatusReturned, returnedBy, at.UTC(), code, model.ItemStatusStored,
	)
	if err != nil {
		return nil, fmt.Errorf("returning item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking returned item: %w", err)
	}

	item, err := GetItemByQRCode(ctx, db, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if n == 0 {
		return item, ErrItemAlreadyReturned
	}
	return item, nil
}

// CountStoredItems returns the number of items currently stored in a department.
func CountStoredItems(ctx context.Context, db *sqlx.DB, department model.Department) (int, error) {
	var n int
	err := db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM items WHERE department = ? AND status = ?`,
		department, model.ItemStatusStored,
	)
	if err != nil {
		return 0, fmt.Errorf("counting stored items: %w", err)
	}
	return n, nil
}

// CountStoredByDepartment returns stored item counts keyed by department.
// Departments without stored items are present with a zero count.
func CountStoredByDepartment(ctx context.Context, db *sqlx.DB) (map[model.Department]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT department, COUNT(*) FROM items WHERE status = ? GROUP BY department`,
		model.ItemStatusStored,
	)
	if err != nil {
		return nil, fmt.Errorf("counting stored items: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Department]int, len(model.Departments))
	for _, d := range model.Departments {
		counts[d] = 0
	}
	for rows.Next() {
		var d model.Department
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("scanning stored count: %w", err)
		}
		counts[d] = n
	}
	return counts, rows.Err()
}

// ItemRepo is the item store used by the cloakroom workflows. It assigns
// identifiers and receipt codes on creation and retries on code collisions.
type ItemRepo struct {
	DB    *sqlx.DB
	Codes qrid.Generator
	Now   func() time.Time
}

// NewItemRepo returns an item store minting codes with codes.
func NewItemRepo(db *sqlx.DB, codes qrid.Generator) *ItemRepo {
	return &ItemRepo{DB: db, Codes: codes, Now: time.Now}
}

// CreateItem records a new stored item built from draft.
func (r *ItemRepo) CreateItem(ctx context.Context, draft model.ItemDraft, acceptedBy string) (*model.Item, error) {
	item := &model.Item{
		ID:                 uuid.NewString(),
		ClientName:         draft.ClientName,
		ClientPhone:        draft.ClientPhone,
		ClientEmail:        draft.ClientEmail,
		Description:        draft.Description,
		Department:         draft.Department,
		DepositDate:        draft.DepositDate,
		ExpectedReturnDate: draft.ExpectedReturnDate,
		Discount:           draft.Discount,
		BonusCard:          draft.BonusCard,
		Status:             model.ItemStatusStored,
		AcceptedBy:         acceptedBy,
		CreatedAt:          r.Now().UTC(),
	}
	if draft.DepositAmount != nil {
		item.DepositAmount = *draft.DepositAmount
	}
	if draft.ReturnAmount != nil {
		item.ReturnAmount = *draft.ReturnAmount
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		item.QRCode = r.Codes.Generate()
		err := InsertItem(ctx, r.DB, item)
		if errors.Is(err, ErrDuplicateQRCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return item, nil
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrIdentifierCollision, MaxCodeAttempts)
}

// GetItemByQRCode returns the item with the given code, or nil.
func (r *ItemRepo) GetItemByQRCode(ctx context.Context, code string) (*model.Item, error) {
	return GetItemByQRCode(ctx, r.DB, code)
}

// ListItemsByStatus returns items in the given status in intake order.
func (r *ItemRepo) ListItemsByStatus(ctx context.Context, status model.ItemStatus) ([]model.Item, error) {
	return ListItemsByStatus(ctx, r.DB, status)
}

// MarkItemReturned moves a stored item to returned at the current time.
func (r *ItemRepo) MarkItemReturned(ctx context.Context, code, returnedBy string) (*model.Item, error) {
	return MarkItemReturned(ctx, r.DB, code, returnedBy, r.Now())
}

// CountStoredItems returns the number of items stored in a department.
func (r *ItemRepo) CountStoredItems(ctx context.Context, department model.Department) (int, error) {
	return CountStoredItems(ctx, r.DB, department)
}

// CountStoredByDepartment returns stored item counts keyed by department.
func (r *ItemRepo) CountStoredByDepartment(ctx context.Context) (map[model.Department]int, error) {
	return CountStoredByDepartment(ctx, r.DB)
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on column.
func isUniqueViolation(err error, column string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return false
	}
	return strings.Contains(se.Error(), column)
}
