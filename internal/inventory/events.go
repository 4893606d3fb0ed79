package inventory

import (
	es "github.com/terraskye/streamstore"
)

type InventoryItemCreated struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e InventoryItemCreated) AggregateID() string { return e.ID }
func (e InventoryItemCreated) EventType() string   { return "InventoryItemCreated" }

type InventoryItemRenamed struct {
	ID      string `json:"id"`
	NewName string `json:"new_name"`
}

func (e InventoryItemRenamed) AggregateID() string { return e.ID }
func (e InventoryItemRenamed) EventType() string   { return "InventoryItemRenamed" }

type InventoryItemDeactivated struct {
	ID string `json:"id"`
}

func (e InventoryItemDeactivated) AggregateID() string { return e.ID }
func (e InventoryItemDeactivated) EventType() string   { return "InventoryItemDeactivated" }

type ItemsCheckedInToInventory struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func (e ItemsCheckedInToInventory) AggregateID() string { return e.ID }
func (e ItemsCheckedInToInventory) EventType() string   { return "ItemsCheckedInToInventory" }

type ItemsRemovedFromInventory struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func (e ItemsRemovedFromInventory) AggregateID() string { return e.ID }
func (e ItemsRemovedFromInventory) EventType() string   { return "ItemsRemovedFromInventory" }

// RegisterEvents adds the inventory events to r.
func RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[InventoryItemCreated](r)
	es.RegisterEvent[InventoryItemRenamed](r)
	es.RegisterEvent[InventoryItemDeactivated](r)
	es.RegisterEvent[ItemsCheckedInToInventory](r)
	es.RegisterEvent[ItemsRemovedFromInventory](r)
}
