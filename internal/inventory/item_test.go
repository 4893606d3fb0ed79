package inventory

import (
	"errors"
	"testing"

	es "github.com/terraskye/streamstore"
)

func activeItem(count int) *InventoryItem {
	item := NewInventoryItem("1")
	item.ApplyEvent(InventoryItemCreated{ID: "1", Name: "Widget"})
	if count > 0 {
		item.ApplyEvent(ItemsCheckedInToInventory{ID: "1", Count: count})
	}
	return item
}

func deactivatedItem() *InventoryItem {
	item := activeItem(0)
	item.ApplyEvent(InventoryItemDeactivated{ID: "1"})
	return item
}

func TestInventoryItem_Rules(t *testing.T) {
	tests := []struct {
		name      string
		item      *InventoryItem
		act       func(*InventoryItem) error
		wantErr   error
		wantEvent es.Event
	}{
		{
			name:      "create",
			item:      NewInventoryItem("1"),
			act:       func(i *InventoryItem) error { return i.Create("Widget") },
			wantEvent: InventoryItemCreated{ID: "1", Name: "Widget"},
		},
		{
			name:    "create without name",
			item:    NewInventoryItem("1"),
			act:     func(i *InventoryItem) error { return i.Create("") },
			wantErr: ErrNameRequired,
		},
		{
			name:      "rename",
			item:      activeItem(0),
			act:       func(i *InventoryItem) error { return i.Rename("Gadget") },
			wantEvent: InventoryItemRenamed{ID: "1", NewName: "Gadget"},
		},
		{
			name:    "rename to empty name",
			item:    activeItem(0),
			act:     func(i *InventoryItem) error { return i.Rename("") },
			wantErr: ErrNameRequired,
		},
		{
			name:      "check in",
			item:      activeItem(0),
			act:       func(i *InventoryItem) error { return i.CheckIn(5) },
			wantEvent: ItemsCheckedInToInventory{ID: "1", Count: 5},
		},
		{
			name:    "check in nothing",
			item:    activeItem(0),
			act:     func(i *InventoryItem) error { return i.CheckIn(0) },
			wantErr: ErrInvalidCount,
		},
		{
			name:      "remove",
			item:      activeItem(10),
			act:       func(i *InventoryItem) error { return i.Remove(4) },
			wantEvent: ItemsRemovedFromInventory{ID: "1", Count: 4},
		},
		{
			name:    "remove negative",
			item:    activeItem(10),
			act:     func(i *InventoryItem) error { return i.Remove(-1) },
			wantErr: ErrInvalidCount,
		},
		{
			name:    "remove more than in stock",
			item:    activeItem(3),
			act:     func(i *InventoryItem) error { return i.Remove(4) },
			wantErr: ErrInsufficientStock,
		},
		{
			name:      "deactivate",
			item:      activeItem(0),
			act:       func(i *InventoryItem) error { return i.Deactivate() },
			wantEvent: InventoryItemDeactivated{ID: "1"},
		},
		{
			name:    "deactivate twice",
			item:    deactivatedItem(),
			act:     func(i *InventoryItem) error { return i.Deactivate() },
			wantErr: ErrItemDeactivated,
		},
		{
			name:    "check in on deactivated item",
			item:    deactivatedItem(),
			act:     func(i *InventoryItem) error { return i.CheckIn(1) },
			wantErr: ErrItemDeactivated,
		},
		{
			name:    "rename unknown item",
			item:    NewInventoryItem("1"),
			act:     func(i *InventoryItem) error { return i.Rename("Gadget") },
			wantErr: ErrItemDeactivated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.act(tt.item)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !errors.Is(err, es.ErrBusinessRuleViolation) {
					t.Fatalf("expected a business rule violation, got %v", err)
				}
				if len(tt.item.UncommittedEvents()) != 0 {
					t.Fatal("a rejected command must not raise events")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			events := tt.item.UncommittedEvents()
			if len(events) != 1 || events[0] != tt.wantEvent {
				t.Fatalf("raised %v, want %v", events, tt.wantEvent)
			}
		})
	}
}

func TestInventoryItem_Apply(t *testing.T) {
	item := NewInventoryItem("1")
	for _, ev := range []es.Event{
		InventoryItemCreated{ID: "1", Name: "Widget"},
		ItemsCheckedInToInventory{ID: "1", Count: 10},
		ItemsRemovedFromInventory{ID: "1", Count: 4},
		InventoryItemRenamed{ID: "1", NewName: "Gadget"},
	} {
		item.ApplyEvent(ev)
	}

	if item.Name() != "Gadget" || item.Count() != 6 || !item.Activated() {
		t.Fatalf("unexpected state name=%q count=%d active=%v", item.Name(), item.Count(), item.Activated())
	}
}
