package app

import (
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/protocol"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	DisconnectSlow
)

func (a BackpressureAction) String() string {
	switch a {
	case DropFrame:
		return "drop_frame"
	case DisconnectSlow:
		return "disconnect"
	}
	return "unknown"
}

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(h core.ConnHandle, ev protocol.ServerEvent) BackpressureAction
}

// SimplePolicy drops negotiation envelopes but disconnects a connection that
// would miss a membership event: its roster could not converge otherwise, and
// a reconnect resyncs it.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ core.ConnHandle, ev protocol.ServerEvent) BackpressureAction {
	if _, ok := ev.(protocol.SignalRelay); ok {
		return DropFrame
	}
	return DisconnectSlow
}

// PolicyByName maps a config value to a Policy.
func PolicyByName(name string) Policy {
	switch name {
	case "drop":
		return dropAll{}
	case "disconnect":
		return disconnectAll{}
	default:
		return SimplePolicy{}
	}
}

type dropAll struct{}

func (dropAll) OnBackPressure(core.ConnHandle, protocol.ServerEvent) BackpressureAction {
	return DropFrame
}

type disconnectAll struct{}

func (disconnectAll) OnBackPressure(core.ConnHandle, protocol.ServerEvent) BackpressureAction {
	return DisconnectSlow
}
