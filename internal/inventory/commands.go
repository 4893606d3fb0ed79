package inventory

// Commands carry the OriginalVersion the client last saw. Zero means the client
// did not supply one and the handler works on whatever version it loads.

type CreateInventoryItem struct {
	ID              string
	Name            string
	OriginalVersion uint64
}

func (c CreateInventoryItem) AggregateID() string { return c.ID }
func (c CreateInventoryItem) CommandType() string { return "CreateInventoryItem" }
func (c CreateInventoryItem) ExpectedVersion() (uint64, bool) {
	return c.OriginalVersion, c.OriginalVersion != 0
}

type RenameInventoryItem struct {
	ID              string
	NewName         string
	OriginalVersion uint64
}

func (c RenameInventoryItem) AggregateID() string { return c.ID }
func (c RenameInventoryItem) CommandType() string { return "RenameInventoryItem" }
func (c RenameInventoryItem) ExpectedVersion() (uint64, bool) {
	return c.OriginalVersion, c.OriginalVersion != 0
}

type DeactivateInventoryItem struct {
	ID              string
	OriginalVersion uint64
}

func (c DeactivateInventoryItem) AggregateID() string { return c.ID }
func (c DeactivateInventoryItem) CommandType() string { return "DeactivateInventoryItem" }
func (c DeactivateInventoryItem) ExpectedVersion() (uint64, bool) {
	return c.OriginalVersion, c.OriginalVersion != 0
}

type CheckInItemsToInventory struct {
	ID              string
	Count           int
	OriginalVersion uint64
}

func (c CheckInItemsToInventory) AggregateID() string { return c.ID }
func (c CheckInItemsToInventory) CommandType() string { return "CheckInItemsToInventory" }
func (c CheckInItemsToInventory) ExpectedVersion() (uint64, bool) {
	return c.OriginalVersion, c.OriginalVersion != 0
}

type RemoveItemsFromInventory struct {
	ID              string
	Count           int
	OriginalVersion uint64
}

func (c RemoveItemsFromInventory) AggregateID() string { return c.ID }
func (c RemoveItemsFromInventory) CommandType() string { return "RemoveItemsFromInventory" }
func (c RemoveItemsFromInventory) ExpectedVersion() (uint64, bool) {
	return c.OriginalVersion, c.OriginalVersion != 0
}
