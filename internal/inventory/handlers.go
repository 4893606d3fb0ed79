package inventory

import (
	"context"
	"errors"

	es "github.com/terraskye/streamstore"
)

// Register installs the inventory command handlers on bus.
func Register(bus *es.CommandBus, repo *es.Repository[*InventoryItem]) error {
	return errors.Join(
		es.Register(bus, es.NewCommandHandler(repo, func(ctx context.Context, item *InventoryItem, cmd CreateInventoryItem) error {
			return item.Create(cmd.Name)
		}, es.WithNewAggregate())),

		es.Register(bus, es.NewCommandHandler(repo, func(ctx context.Context, item *InventoryItem, cmd RenameInventoryItem) error {
			return item.Rename(cmd.NewName)
		})),

		es.Register(bus, es.NewCommandHandler(repo, func(ctx context.Context, item *InventoryItem, cmd DeactivateInventoryItem) error {
			return item.Deactivate()
		})),

		es.Register(bus, es.NewCommandHandler(repo, func(ctx context.Context, item *InventoryItem, cmd CheckInItemsToInventory) error {
			return item.CheckIn(cmd.Count)
		})),

		es.Register(bus, es.NewCommandHandler(repo, func(ctx context.Context, item *InventoryItem, cmd RemoveItemsFromInventory) error {
			return item.Remove(cmd.Count)
		})),
	)
}
