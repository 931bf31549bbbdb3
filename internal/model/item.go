package model

import "time"

// Department is the storage category an item is kept in.
type Department string

// Departments.
const (
	DepartmentDocuments Department = "documents"
	DepartmentPhotos    Department = "photos"
	DepartmentOther     Department = "other"
)

// Departments lists every department in display order.
var Departments = []Department{DepartmentDocuments, DepartmentPhotos, DepartmentOther}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	switch d {
	case DepartmentDocuments, DepartmentPhotos, DepartmentOther:
		return true
	}
	return false
}

// ItemStatus is the lifecycle state of a deposited item.
type ItemStatus string

// Item statuses. An item moves from stored to returned exactly once.
const (
	ItemStatusStored   ItemStatus = "stored"
	ItemStatusReturned ItemStatus = "returned"
)

// DateLayout is the format of deposit and expected return dates.
const DateLayout = time.DateOnly

// Item is a deposited item together with its receipt code.
type Item struct {
	ID                 string     `json:"id" db:"id"`
	QRCode             string     `json:"qr_code" db:"qr_code"`
	ClientName         string     `json:"client_name" db:"client_name"`
	ClientPhone        string     `json:"client_phone" db:"client_phone"`
	ClientEmail        string     `json:"client_email,omitempty" db:"client_email"`
	Description        string     `json:"description" db:"description"`
	Department         Department `json:"department" db:"department"`
	DepositAmount      int64      `json:"deposit_amount" db:"deposit_amount"`
	ReturnAmount       int64      `json:"return_amount" db:"return_amount"`
	DepositDate        string     `json:"deposit_date" db:"deposit_date"`
	ExpectedReturnDate string     `json:"expected_return_date" db:"expected_return_date"`
	Discount           int        `json:"discount,omitempty" db:"discount"`
	BonusCard          string     `json:"bonus_card,omitempty" db:"bonus_card"`
	Status             ItemStatus `json:"status" db:"status"`
	AcceptedBy         string     `json:"accepted_by" db:"accepted_by"`
	ReturnedBy         string     `json:"returned_by,omitempty" db:"returned_by"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	ReturnedAt         *time.Time `json:"returned_at,omitempty" db:"returned_at"`
}

// ItemDraft holds the client-supplied fields of an item before intake.
// Amounts are pointers so that a missing amount can be told apart from zero.
type ItemDraft struct {
	ClientName         string     `json:"client_name" validate:"required,max=200"`
	ClientPhone        string     `json:"client_phone" validate:"required,phone"`
	ClientEmail        string     `json:"client_email" validate:"omitempty,email"`
	Description        string     `json:"description" validate:"required,max=2000"`
	Department         Department `json:"department" validate:"required,oneof=documents photos other"`
	DepositAmount      *int64     `json:"deposit_amount" validate:"required,gte=0"`
	ReturnAmount       *int64     `json:"return_amount" validate:"required,gte=0"`
	DepositDate        string     `json:"deposit_date" validate:"required,datetime=2006-01-02"`
	ExpectedReturnDate string     `json:"expected_return_date" validate:"required,datetime=2006-01-02"`
	Discount           int        `json:"discount" validate:"gte=0,lte=100"`
	BonusCard          string     `json:"bonus_card" validate:"max=64"`
}

// Amount returns a pointer to v, for filling draft amounts.
func Amount(v int64) *int64 {
	return &v
}
