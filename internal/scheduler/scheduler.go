package scheduler

import "github.com/me/edaq/pkg/model"

// Registrar is the producer-side registration API consumed by actuators and
// the control server.
type Registrar interface {
	// RegisterActuator allocates a channel block and, for the first caller
	// only, clock-reset permission.
	RegisterActuator(nChannels int) Registration

	// RegisterEvent normalizes and inserts an event. It returns the resolved
	// event and whether it was newly stored.
	RegisterEvent(e model.Event, actuatorID string) (model.Event, bool)

	// Drain discards delivered events nobody has consumed yet.
	Drain() []model.Event

	// Stop cancels the pending delivery and closes the delivery channel.
	Stop()
}

// ChannelBlock is a contiguous range of channel ordinals owned by one actuator.
type ChannelBlock struct {
	Start int `json:"start"`
	Size  int `json:"size"`
}

// Contains reports whether ordinal i falls inside the block.
func (b ChannelBlock) Contains(i int) bool {
	return i >= b.Start && i < b.Start+b.Size
}

// Registration is what an actuator gets back from RegisterActuator.
type Registration struct {
	ID       string       `json:"id"`
	Channels ChannelBlock `json:"channels"`
	CanReset bool         `json:"can_reset"`
}
