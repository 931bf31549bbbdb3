package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/hramba/internal/db"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/qrid"
)

func testDraft(department model.Department) model.ItemDraft {
	return model.ItemDraft{
		ClientName:         "A",
		ClientPhone:        "+70000000000",
		Description:        "box",
		Department:         department,
		DepositAmount:      model.Amount(100),
		ReturnAmount:       model.Amount(50),
		DepositDate:        "2024-01-01",
		ExpectedReturnDate: "2024-02-01",
	}
}

// sequence returns a generator handing out codes in order.
func sequence(codes ...string) qrid.Generator {
	var mu sync.Mutex
	i := 0
	return qrid.GeneratorFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code
	})
}

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := NewItemRepo(database, qrid.New())

	item, err := repo.CreateItem(ctx, testDraft(model.DepartmentOther), "Ana")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.ID == "" || item.QRCode == "" {
		t.Fatalf("expected id and code to be assigned, got %+v", item)
	}
	if item.Status != model.ItemStatusStored {
		t.Errorf("expected status 'stored', got %q", item.Status)
	}

	got, err := GetItemByQRCode(ctx, database, item.QRCode)
	if err != nil {
		t.Fatalf("GetItemByQRCode: %v", err)
	}
	if got == nil {
		t.Fatal("expected item, got nil")
	}
	if got.ID != item.ID || got.ClientName != "A" || got.DepositAmount != 100 || got.ReturnAmount != 50 {
		t.Errorf("stored item differs: %+v", got)
	}
	if got.AcceptedBy != "Ana" {
		t.Errorf("expected accepted_by 'Ana', got %q", got.AcceptedBy)
	}
	if got.ReturnedAt != nil {
		t.Error("expected no returned_at on a stored item")
	}

	missing, err := GetItemByQRCode(ctx, database, "QR-missing")
	if err != nil {
		t.Fatalf("GetItemByQRCode: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown code")
	}
}

func TestCreateItemRetriesOnCollision(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := NewItemRepo(database, sequence("QR1", "QR1", "QR1", "QR2"))

	first, err := repo.CreateItem(ctx, testDraft(model.DepartmentOther), "")
	if err != nil {
		t.Fatalf("first CreateItem: %v", err)
	}
	second, err := repo.CreateItem(ctx, testDraft(model.DepartmentOther), "")
	if err != nil {
		t.Fatalf("second CreateItem: %v", err)
	}

	if first.QRCode != "QR1" || second.QRCode != "QR2" {
		t.Errorf("expected codes QR1 and QR2, got %q and %q", first.QRCode, second.QRCode)
	}
}

func TestCreateItemCollisionExhausted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := NewItemRepo(database, sequence("QR1"))

	if _, err := repo.CreateItem(ctx, testDraft(model.DepartmentOther), ""); err != nil {
		t.Fatalf("first CreateItem: %v", err)
	}

	_, err := repo.CreateItem(ctx, testDraft(model.DepartmentOther), "")
	if !errors.Is(err, ErrIdentifierCollision) {
		t.Fatalf("expected ErrIdentifierCollision, got %v", err)
	}

	stored, _ := ListItemsByStatus(ctx, database, model.ItemStatusStored)
	if len(stored) != 1 {
		t.Errorf("expected 1 stored item after failed create, got %d", len(stored))
	}
}

func TestListItemsByStatusKeepsIntakeOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := NewItemRepo(database, sequence("QR3", "QR1", "QR2"))

	for i := 0; i < 3; i++ {
		d := testDraft(model.DepartmentDocuments)
		d.Description = fmt.Sprintf("item %d", i)
		if _, err := repo.CreateItem(ctx, d, ""); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	items, err := ListItemsByStatus(ctx, database, model.ItemStatusStored)
	if err != nil {
		t.Fatalf("ListItemsByStatus: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if want := fmt.Sprintf("item %d", i); item.Description != want {
			t.Errorf("position %d: expected %q, got %q", i, want, item.Description)
		}
	}

	returned, _ := ListItemsByStatus(ctx, database, model.ItemStatusReturned)
	if len(returned) != 0 {
		t.Errorf("expected no returned items, got %d", len(returned))
	}
}

func TestMarkItemReturned(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := NewItemRepo(database, qrid.New())

	item, _ := repo.CreateItem(ctx, testDraft(model.DepartmentPhotos), "")
	at := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	got, err := MarkItemReturned(ctx, database, item.QRCode, "Boris", at)
	if err != nil {
		t.Fatalf("MarkItemReturned: %v", err)
	}
	if got.Status != model.ItemStatusReturned {
		t.Errorf("expected status 'returned', got %q", got.Status)
	}
	if got.ReturnedAt == nil || !got.ReturnedAt.Equal(at) {
		t.Errorf("expected returned_at %v, got %v", at, got.ReturnedAt)
	}
	if got.ReturnedBy != "Boris" {
		t.Errorf("expected returned_by 'Boris', got %q", got.ReturnedBy)
	}

	_, err = MarkItemReturned(ctx, database, item.QRCode, "Boris", at)
	if !errors.Is(err, ErrItemAlreadyReturned) {
		t.Errorf("expected ErrItemAlreadyReturned, got %v", err)
	}

	_, err = MarkItemReturned(ctx, database, "QR-missing", "Boris", at)
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestCountStoredItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := NewItemRepo(database, qrid.New())

	a, _ := repo.CreateItem(ctx, testDraft(model.DepartmentDocuments), "")
	repo.CreateItem(ctx, testDraft(model.DepartmentDocuments), "")
	repo.CreateItem(ctx, testDraft(model.DepartmentPhotos), "")
	repo.MarkItemReturned(ctx, a.QRCode, "")

	n, err := CountStoredItems(ctx, database, model.DepartmentDocuments)
	if err != nil {
		t.Fatalf("CountStoredItems: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 stored document, got %d", n)
	}

	counts, err := CountStoredByDepartment(ctx, database)
	if err != nil {
		t.Fatalf("CountStoredByDepartment: %v", err)
	}
	want := map[model.Department]int{
		model.DepartmentDocuments: 1,
		model.DepartmentPhotos:    1,
		model.DepartmentOther:     0,
	}
	for d, n := range want {
		if counts[d] != n {
			t.Errorf("%s: expected %d, got %d", d, n, counts[d])
		}
	}
}

func TestMarkItemReturnedConcurrent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := NewItemRepo(database, qrid.New())

	item, _ := repo.CreateItem(ctx, testDraft(model.DepartmentOther), "")

	const callers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, rejected := 0, 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.MarkItemReturned(ctx, item.QRCode, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrItemAlreadyReturned):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejected != callers-1 {
		t.Errorf("expected 1 success and %d rejections, got %d and %d", callers-1, successes, rejected)
	}
}
