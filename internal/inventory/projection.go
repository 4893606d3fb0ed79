package inventory

import (
	"context"

	es "github.com/terraskye/streamstore"
)

const (
	// ItemRowPrefix prefixes the read-model row of every item.
	ItemRowPrefix = "item|"

	itemEntityKind = "InventoryItemView"
)

// InventoryItemView is the read-model row of one item. It lives in the item's
// stream partition and is only written by the projection below.
type InventoryItemView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CurrentCount int    `json:"current_count"`
	Version      uint64 `json:"version"`
}

// ItemRowKey returns the row key of the view of item id.
func ItemRowKey(id string) string {
	return ItemRowPrefix + id
}

// RegisterProjections adds the InventoryItemView projection to router.
func RegisterProjections(router *es.ProjectionRouter) {
	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev InventoryItemCreated, _ es.Fetcher) ([]es.Include, error) {
		inc, err := es.InsertEntity(ItemRowKey(ev.ID), itemEntityKind, InventoryItemView{
			ID:      ev.ID,
			Name:    ev.Name,
			Version: env.Version,
		})
		if err != nil {
			return nil, err
		}
		return []es.Include{inc}, nil
	})

	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev InventoryItemRenamed, f es.Fetcher) ([]es.Include, error) {
		return updateView(ctx, f, ev.ID, env.Version, func(v *InventoryItemView) {
			v.Name = ev.NewName
		})
	})

	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev ItemsCheckedInToInventory, f es.Fetcher) ([]es.Include, error) {
		return updateView(ctx, f, ev.ID, env.Version, func(v *InventoryItemView) {
			v.CurrentCount += ev.Count
		})
	})

	// Arithmetic is applied as is; the aggregate rejects removals below zero.
	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev ItemsRemovedFromInventory, f es.Fetcher) ([]es.Include, error) {
		return updateView(ctx, f, ev.ID, env.Version, func(v *InventoryItemView) {
			v.CurrentCount -= ev.Count
		})
	})

	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev InventoryItemDeactivated, f es.Fetcher) ([]es.Include, error) {
		view, err := es.FetchEntity[InventoryItemView](ctx, f, ItemRowKey(ev.ID))
		if err != nil {
			return nil, err
		}
		return []es.Include{es.DeleteEntity(view)}, nil
	})
}

func updateView(ctx context.Context, f es.Fetcher, id string, version uint64, mutate func(*InventoryItemView)) ([]es.Include, error) {
	view, err := es.FetchEntity[InventoryItemView](ctx, f, ItemRowKey(id))
	if err != nil {
		return nil, err
	}
	mutate(&view.Value)
	view.Value.Version = version

	inc, err := es.ReplaceEntity(itemEntityKind, view)
	if err != nil {
		return nil, err
	}
	return []es.Include{inc}, nil
}
