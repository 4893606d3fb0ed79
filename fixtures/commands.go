package fixtures

// OtherCommand is a command kind no handler is registered for in routing tests.
type OtherCommand struct {
	ID string
}

func (c OtherCommand) AggregateID() string { return c.ID }
func (c OtherCommand) CommandType() string { return "OtherCommand" }
