package store

import (
	"context"
	"testing"

	"github.com/erazemk/hramba/internal/db"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/qrid"
)

func TestCreateAndListNotifications(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := NewItemRepo(database, qrid.New()).CreateItem(ctx, testDraft(model.DepartmentOther), "")

	n, err := CreateNotification(ctx, database, "+70000000000", "Your item is ready", &item.ID, "Ana")
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if n.ItemID == nil || *n.ItemID != item.ID {
		t.Errorf("expected item id %q, got %v", item.ID, n.ItemID)
	}

	if _, err := CreateNotification(ctx, database, "+70000000001", "Hello", nil, "Ana"); err != nil {
		t.Fatalf("CreateNotification without item: %v", err)
	}

	ns, err := ListNotifications(ctx, database, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(ns) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(ns))
	}
	if ns[0].Message != "Hello" {
		t.Errorf("expected newest first, got %q", ns[0].Message)
	}
	if ns[0].ItemID != nil {
		t.Errorf("expected no item id, got %q", *ns[0].ItemID)
	}
}

func TestCreateNotificationUnknownItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	missing := "no-such-item"
	if _, err := CreateNotification(ctx, database, "+70000000000", "x", &missing, ""); err == nil {
		t.Error("expected foreign key error for unknown item")
	}
}
