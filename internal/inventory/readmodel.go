package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	es "github.com/terraskye/streamstore"
)

// ErrItemNotFound is returned when an item has no read-model row, either because
// it never existed or because it was deactivated.
var ErrItemNotFound = errors.New("inventory item not found")

type InventoryItemListDto struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type InventoryItemDetailsDto struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CurrentCount int    `json:"current_count"`
	Version      uint64 `json:"version"`
}

// ReadModelFacade answers the inventory queries from the rows maintained by
// RegisterProjections.
type ReadModelFacade struct {
	items *es.ReadModel[InventoryItemView]
}

func NewReadModelFacade(backend es.Backend) *ReadModelFacade {
	return &ReadModelFacade{
		items: es.NewReadModel[InventoryItemView](backend, ItemRowPrefix),
	}
}

// GetInventoryItems lists every active item, ordered by name. It scans all item
// partitions and is therefore not a consistent snapshot.
func (f *ReadModelFacade) GetInventoryItems(ctx context.Context) ([]InventoryItemListDto, error) {
	it, err := f.items.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}

	out := make([]InventoryItemListDto, 0)
	for it.Next(ctx) {
		v := it.Value().Value
		out = append(out, InventoryItemListDto{ID: v.ID, Name: v.Name})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetInventoryItemDetails returns the view of item id, or ErrItemNotFound.
func (f *ReadModelFacade) GetInventoryItemDetails(ctx context.Context, id string) (InventoryItemDetailsDto, error) {
	entity, ok, err := f.items.Get(ctx, es.PartitionKey(StreamKind, id), ItemRowKey(id))
	if err != nil {
		return InventoryItemDetailsDto{}, fmt.Errorf("get inventory item %q: %w", id, err)
	}
	if !ok {
		return InventoryItemDetailsDto{}, fmt.Errorf("get inventory item %q: %w", id, ErrItemNotFound)
	}

	v := entity.Value
	return InventoryItemDetailsDto{
		ID:           v.ID,
		Name:         v.Name,
		CurrentCount: v.CurrentCount,
		Version:      v.Version,
	}, nil
}

// GetInventoryItems is the query form of ReadModelFacade.GetInventoryItems.
type GetInventoryItems struct{}

func (GetInventoryItems) QueryType() string { return "GetInventoryItems" }

// GetInventoryItemDetails is the query form of ReadModelFacade.GetInventoryItemDetails.
type GetInventoryItemDetails struct {
	ID string
}

func (GetInventoryItemDetails) QueryType() string { return "GetInventoryItemDetails" }

// ItemsHandler answers GetInventoryItems.
func (f *ReadModelFacade) ItemsHandler() es.QueryHandler[GetInventoryItems, []InventoryItemListDto] {
	return es.NewQueryHandlerFunc(func(ctx context.Context, _ GetInventoryItems) ([]InventoryItemListDto, error) {
		return f.GetInventoryItems(ctx)
	})
}

// DetailsHandler answers GetInventoryItemDetails.
func (f *ReadModelFacade) DetailsHandler() es.QueryHandler[GetInventoryItemDetails, InventoryItemDetailsDto] {
	return es.NewQueryHandlerFunc(func(ctx context.Context, q GetInventoryItemDetails) (InventoryItemDetailsDto, error) {
		return f.GetInventoryItemDetails(ctx, q.ID)
	})
}
