package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent      = errors.New("unknown event")
	ErrMalformed         = errors.New("malformed event")
	ErrUnknownSignalType = errors.New("unknown signal type")
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encode(name string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return json.Marshal(envelope{Event: name, Data: data})
}

func EncodeClient(ev ClientEvent) ([]byte, error) { return encode(ev.Name(), ev) }

func EncodeServer(ev ServerEvent) ([]byte, error) { return encode(ev.Name(), ev) }

func unwrap(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Data) == 0 {
		return env, fmt.Errorf("%w: %s without data", ErrMalformed, env.Event)
	}
	return env, nil
}

func decodeData(env envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, env.Event, err)
	}
	return nil
}

// DecodeClient decodes a frame read by the relay.
func DecodeClient(raw []byte) (ClientEvent, error) {
	env, err := unwrap(raw)
	if err != nil {
		return nil, err
	}
	switch env.Event {
	case EventJoinChannel:
		var ev JoinChannel
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		if ev.ChannelID == "" || ev.UserID == "" {
			return nil, fmt.Errorf("%w: join-channel needs channelId and userId", ErrMalformed)
		}
		return ev, nil
	case EventLeaveChannel:
		var ev LeaveChannel
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		if ev.ChannelID == "" {
			return nil, fmt.Errorf("%w: leave-channel needs channelId", ErrMalformed)
		}
		return ev, nil
	case EventSignal:
		var ev SignalRequest
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		if !ev.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSignalType, ev.Type)
		}
		if ev.To == "" || ev.ChannelID == "" {
			return nil, fmt.Errorf("%w: signal needs to and channelId", ErrMalformed)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// DecodeServer decodes a frame read by a client.
func DecodeServer(raw []byte) (ServerEvent, error) {
	env, err := unwrap(raw)
	if err != nil {
		return nil, err
	}
	switch env.Event {
	case EventChannelUsers:
		var ev ChannelUsers
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventUserJoined:
		var ev UserJoined
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventUserLeft:
		var ev UserLeft
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventSignal:
		var ev SignalRelay
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		if !ev.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSignalType, ev.Type)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}
