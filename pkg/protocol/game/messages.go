// Package game содержит сообщения протокола между клиентом и сервером.
//
// Сообщения передаются через gRPC с JSON-кодеком (см. codec.go) и через
// WebSocket-шлюз в том же JSON-виде, поэтому клиенты обоих транспортов
// разбирают одинаковые структуры.
package game

import "encoding/json"

// BlockPosition is the absolute position of a block inside a named world.
type BlockPosition struct {
	World string `json:"world"`
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	Z     int32  `json:"z"`
}

// Block describes a single block in the world.
type Block struct {
	Position *BlockPosition `json:"position"`
	Type     int32          `json:"type"`
}

// JoinRequest is sent by a client to enter the game.
type JoinRequest struct {
	PlayerName string `json:"player_name"`
}

// JoinResponse answers a JoinRequest.
type JoinResponse struct {
	PlayerId      string         `json:"player_id,omitempty"`
	SpawnPosition *BlockPosition `json:"spawn_position,omitempty"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// ActionType is the kind of block action a player performs.
type ActionType int32

const (
	ActionPlace ActionType = iota
	ActionDestroy
	ActionInteract
)

func (a ActionType) String() string {
	switch a {
	case ActionPlace:
		return "PLACE"
	case ActionDestroy:
		return "DESTROY"
	case ActionInteract:
		return "INTERACT"
	}
	return "UNKNOWN"
}

// BlockAction is a place, destroy or interact request from a player.
type BlockAction struct {
	Action    ActionType     `json:"action"`
	Position  *BlockPosition `json:"position"`
	BlockType int32          `json:"block_type,omitempty"`
}

// FormResponse carries the answer to a FormRequest. Data holds the raw JSON
// answer array; Cancelled is set when the player closed the form.
type FormResponse struct {
	FormId    string          `json:"form_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Cancelled bool            `json:"cancelled,omitempty"`
}

// ChatMessage is a chat line typed by a player.
type ChatMessage struct {
	Content string `json:"content"`
}

// Ping measures round trip time.
type Ping struct {
	ClientTime int64 `json:"client_time"`
}

// ClientMessage is the envelope for every message a client sends on the game
// stream. Exactly one payload field is expected to be set.
type ClientMessage struct {
	PlayerId     string        `json:"player_id"`
	BlockAction  *BlockAction  `json:"block_action,omitempty"`
	FormResponse *FormResponse `json:"form_response,omitempty"`
	Chat         *ChatMessage  `json:"chat,omitempty"`
	Ping         *Ping         `json:"ping,omitempty"`
}

// ChatBroadcast is a chat line delivered to a client. Server notifications use
// PlayerId "server".
type ChatBroadcast struct {
	PlayerId   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Content    string `json:"content"`
	IsGlobal   bool   `json:"is_global"`
}

// FormRequest asks the client to render a form and answer it with a
// FormResponse carrying the same FormId.
type FormRequest struct {
	FormId string          `json:"form_id"`
	Form   json.RawMessage `json:"form"`
}

// WorldEventType classifies world events.
type WorldEventType int32

const (
	EventBlockPlaced WorldEventType = iota
	EventBlockRemoved
	EventTimeChanged
	EventServerShutdown
)

func (t WorldEventType) String() string {
	switch t {
	case EventBlockPlaced:
		return "BLOCK_PLACED"
	case EventBlockRemoved:
		return "BLOCK_REMOVED"
	case EventTimeChanged:
		return "TIME_CHANGED"
	case EventServerShutdown:
		return "SERVER_SHUTDOWN"
	}
	return "UNKNOWN"
}

// TimeInfo is the world clock.
type TimeInfo struct {
	DayTime int64 `json:"day_time"`
	Day     int32 `json:"day"`
}

// WorldEvent is broadcast to clients when something in the world changes.
type WorldEvent struct {
	Type     WorldEventType `json:"type"`
	Position *BlockPosition `json:"position,omitempty"`
	PlayerId string         `json:"player_id,omitempty"`
	Message  string         `json:"message,omitempty"`
	Block    *Block         `json:"block,omitempty"`
	Time     *TimeInfo      `json:"time,omitempty"`
}

// ActionResult tells the acting client whether its BlockAction went through.
type ActionResult struct {
	Action   ActionType     `json:"action"`
	Position *BlockPosition `json:"position"`
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
}

// Pong answers a Ping.
type Pong struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
}

// ServerMessage is the envelope for every message the server sends on the game
// stream.
type ServerMessage struct {
	ChatBroadcast *ChatBroadcast `json:"chat_broadcast,omitempty"`
	FormRequest   *FormRequest   `json:"form_request,omitempty"`
	WorldEvent    *WorldEvent    `json:"world_event,omitempty"`
	ActionResult  *ActionResult  `json:"action_result,omitempty"`
	Pong          *Pong          `json:"pong,omitempty"`
}
