package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Chat event types.
const (
	TypeHello          = "hello"
	TypeChatJoined     = "chat:joined"
	TypeChatNew        = "chat:new"
	TypePresenceUpdate = "presence:update"

	TypeChatJoin  = "chat:join"
	TypeChatSend  = "chat:send"
	TypeHeartbeat = "heartbeat"
)

// ChatInbound is a decoded chat socket frame: JoinRoom, SendChat or Heartbeat.
type ChatInbound interface{ isChatInbound() }

type JoinRoom struct{ Room string }

type SendChat struct {
	Room    string
	Message string
}

type Heartbeat struct{}

func (JoinRoom) isChatInbound()  {}
func (SendChat) isChatInbound()  {}
func (Heartbeat) isChatInbound() {}

type chatWire struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

func ParseChatInbound(data []byte) (ChatInbound, error) {
	var w chatWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode chat frame: %w", err)
	}
	switch w.Type {
	case TypeChatJoin:
		return JoinRoom{Room: w.Room}, nil
	case TypeChatSend:
		return SendChat{Room: w.Room, Message: w.Message}, nil
	case TypeHeartbeat:
		return Heartbeat{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, w.Type)
	}
}

// RaceInbound is a decoded race socket frame: StartRace, ReportProgress or
// FinishRace. The client-reported player name is not carried; the server
// knows who owns the socket.
type RaceInbound interface{ isRaceInbound() }

type StartRace struct{}

type ReportProgress struct{ CharsTyped int }

type FinishRace struct{ Time float64 }

func (StartRace) isRaceInbound()      {}
func (ReportProgress) isRaceInbound() {}
func (FinishRace) isRaceInbound()     {}

type raceWire struct {
	Event      string  `json:"event"`
	Player     string  `json:"player"`
	CharsTyped float64 `json:"charsTyped"`
	Time       float64 `json:"time"`
}

func ParseRaceInbound(data []byte) (RaceInbound, error) {
	var w raceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode race frame: %w", err)
	}
	switch w.Event {
	case "start":
		return StartRace{}, nil
	case "progress":
		return ReportProgress{CharsTyped: clampChars(w.CharsTyped)}, nil
	case "finish":
		return FinishRace{Time: w.Time}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, w.Event)
	}
}

// clampChars bounds a reported count to [0, MaxInt32] before converting, so
// NaN, huge and negative values never reach the roster.
func clampChars(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(v)
}

type joinedPayload struct {
	Room string `json:"room"`
}
