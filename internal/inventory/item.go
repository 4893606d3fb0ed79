package inventory

import (
	"fmt"

	es "github.com/terraskye/streamstore"
)

// StreamKind is the partition kind of inventory item streams, "Items|<id>".
const StreamKind = "Items"

var (
	ErrNameRequired      = fmt.Errorf("%w: name is required", es.ErrBusinessRuleViolation)
	ErrInvalidCount      = fmt.Errorf("%w: count must be positive", es.ErrBusinessRuleViolation)
	ErrInsufficientStock = fmt.Errorf("%w: not enough items in stock", es.ErrBusinessRuleViolation)
	ErrItemDeactivated   = fmt.Errorf("%w: item is deactivated", es.ErrBusinessRuleViolation)
)

// InventoryItem is the write-side aggregate of one stocked item.
type InventoryItem struct {
	*es.AggregateBase

	name      string
	count     int
	activated bool
}

func NewInventoryItem(id string) *InventoryItem {
	return &InventoryItem{AggregateBase: es.NewAggregateBase(id)}
}

// NewRepository returns the repository of inventory items stored in store.
func NewRepository(store es.EventStore) *es.Repository[*InventoryItem] {
	return es.NewRepository(store, NewInventoryItem, es.WithStreamKind(StreamKind))
}

func (i *InventoryItem) ApplyEvent(event es.Event) {
	switch ev := event.(type) {
	case InventoryItemCreated:
		i.name = ev.Name
		i.activated = true
	case InventoryItemRenamed:
		i.name = ev.NewName
	case ItemsCheckedInToInventory:
		i.count += ev.Count
	case ItemsRemovedFromInventory:
		i.count -= ev.Count
	case InventoryItemDeactivated:
		i.activated = false
	}
}

func (i *InventoryItem) Name() string    { return i.name }
func (i *InventoryItem) Count() int      { return i.count }
func (i *InventoryItem) Activated() bool { return i.activated }

func (i *InventoryItem) Create(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	es.Raise(i, InventoryItemCreated{ID: i.AggregateID(), Name: name})
	return nil
}

func (i *InventoryItem) Rename(newName string) error {
	if err := i.mustBeActive(); err != nil {
		return err
	}
	if newName == "" {
		return ErrNameRequired
	}
	es.Raise(i, InventoryItemRenamed{ID: i.AggregateID(), NewName: newName})
	return nil
}

func (i *InventoryItem) CheckIn(count int) error {
	if err := i.mustBeActive(); err != nil {
		return err
	}
	if count <= 0 {
		return ErrInvalidCount
	}
	es.Raise(i, ItemsCheckedInToInventory{ID: i.AggregateID(), Count: count})
	return nil
}

func (i *InventoryItem) Remove(count int) error {
	if err := i.mustBeActive(); err != nil {
		return err
	}
	if count <= 0 {
		return ErrInvalidCount
	}
	if count > i.count {
		return fmt.Errorf("remove %d of %d: %w", count, i.count, ErrInsufficientStock)
	}
	es.Raise(i, ItemsRemovedFromInventory{ID: i.AggregateID(), Count: count})
	return nil
}

func (i *InventoryItem) Deactivate() error {
	if err := i.mustBeActive(); err != nil {
		return err
	}
	es.Raise(i, InventoryItemDeactivated{ID: i.AggregateID()})
	return nil
}

func (i *InventoryItem) mustBeActive() error {
	if !i.activated {
		return ErrItemDeactivated
	}
	return nil
}
