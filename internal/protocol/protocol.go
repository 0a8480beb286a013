// Package protocol defines the channel messages exchanged between a client
// and the room server. Every message kind is a concrete type behind the
// ClientMessage/ServerMessage unions, so dispatch is an exhaustive type switch
// rather than string-keyed callbacks.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("unknown message type")

// Wire kinds, client -> server.
const (
	KindJoinRoom      = "join-room"
	KindSetVideo      = "set-video"
	KindChatMessage   = "chat-message"
	KindSyncPlay      = "sync-play"
	KindSyncPause     = "sync-pause"
	KindSyncSeek      = "sync-seek"
	KindExitRoom      = "exit-room"
	KindTerminateRoom = "terminate-room"
)

// Wire kinds, server -> client. Sync kinds are shared with the client
// direction; the payload shape differs.
const (
	KindRoomState      = "room-state"
	KindSyncState      = "sync-state"
	KindVideoChanged   = "video-changed"
	KindOwnerChanged   = "room-owner-changed"
	KindRoomExited     = "room-exited"
	KindRoomTerminated = "room-terminated"
	KindJoinError      = "join-error"
	KindActionError    = "action-error"
	KindSystemMessage  = "system-message"
)

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// VideoRef identifies the video under synchronization.
type VideoRef struct {
	VideoID      string `json:"videoId"`
	ChannelID    string `json:"channelId,omitempty"`
	Title        string `json:"title,omitempty"`
	ChannelTitle string `json:"channelTitle,omitempty"`
	Thumbnail    string `json:"thumbnail,omitempty"`
}

type ClientMessage interface{ ClientKind() string }

type JoinRoom struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type SetVideo struct {
	VideoID string `json:"videoId"`
}

// ChatSend is the outbound chat payload; the server echoes it back to the
// room as a ChatMessage with id and username filled in.
type ChatSend struct {
	Text string `json:"text"`
}

type PlayEvent struct {
	CurrentTime float64 `json:"currentTime"`
}

type PauseEvent struct {
	CurrentTime float64 `json:"currentTime"`
}

type SeekEvent struct {
	CurrentTime float64 `json:"currentTime"`
}

type ExitRoom struct{}

type TerminateRoom struct{}

func (JoinRoom) ClientKind() string      { return KindJoinRoom }
func (SetVideo) ClientKind() string      { return KindSetVideo }
func (ChatSend) ClientKind() string      { return KindChatMessage }
func (PlayEvent) ClientKind() string     { return KindSyncPlay }
func (PauseEvent) ClientKind() string    { return KindSyncPause }
func (SeekEvent) ClientKind() string     { return KindSyncSeek }
func (ExitRoom) ClientKind() string      { return KindExitRoom }
func (TerminateRoom) ClientKind() string { return KindTerminateRoom }

type ServerMessage interface{ ServerKind() string }

// RoomState is the full join bootstrap. ClientID is the identifier the server
// assigned to this connection; owner changes are evaluated against it.
type RoomState struct {
	RoomCode    string        `json:"roomCode"`
	ClientID    string        `json:"clientId"`
	IsHost      bool          `json:"isHost"`
	VideoID     string        `json:"videoId,omitempty"`
	Playing     bool          `json:"isPlaying"`
	CurrentTime float64       `json:"currentTime"`
	ServerNow   int64         `json:"serverNow,omitempty"`
	Chat        []ChatMessage `json:"chat,omitempty"`
}

// PlaySync, PauseSync, SeekSync carry an authoritative snapshot after another
// member's explicit action; StateSync is the ambient periodic snapshot.
type PlaySync struct {
	Playing     bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	ServerNow   int64   `json:"serverNow,omitempty"`
}

type PauseSync struct {
	Playing     bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	ServerNow   int64   `json:"serverNow,omitempty"`
}

type SeekSync struct {
	Playing     bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	ServerNow   int64   `json:"serverNow,omitempty"`
}

type StateSync struct {
	Playing     bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	ServerNow   int64   `json:"serverNow,omitempty"`
}

type VideoChanged struct {
	VideoID string `json:"videoId"`
	By      string `json:"by,omitempty"`
}

type OwnerChanged struct {
	OwnerID string `json:"ownerSocketId"`
}

type RoomExited struct {
	By string `json:"by,omitempty"`
}

type RoomTerminated struct {
	By string `json:"by,omitempty"`
}

type JoinError struct {
	Message string `json:"message"`
}

type ActionError struct {
	Message string `json:"message"`
}

type ChatMessage struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

type SystemMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (RoomState) ServerKind() string      { return KindRoomState }
func (PlaySync) ServerKind() string       { return KindSyncPlay }
func (PauseSync) ServerKind() string      { return KindSyncPause }
func (SeekSync) ServerKind() string       { return KindSyncSeek }
func (StateSync) ServerKind() string      { return KindSyncState }
func (VideoChanged) ServerKind() string   { return KindVideoChanged }
func (OwnerChanged) ServerKind() string   { return KindOwnerChanged }
func (RoomExited) ServerKind() string     { return KindRoomExited }
func (RoomTerminated) ServerKind() string { return KindRoomTerminated }
func (JoinError) ServerKind() string      { return KindJoinError }
func (ActionError) ServerKind() string    { return KindActionError }
func (ChatMessage) ServerKind() string    { return KindChatMessage }
func (SystemMessage) ServerKind() string  { return KindSystemMessage }

func EncodeClient(m ClientMessage) ([]byte, error) {
	return encode(m.ClientKind(), m)
}

func EncodeServer(m ServerMessage) ([]byte, error) {
	return encode(m.ServerKind(), m)
}

func encode(kind string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return json.Marshal(Envelope{Type: kind, Data: data})
}

// DecodeClient parses a message received from a client. Missing payload
// fields decode to their zero values; the engine treats those as defaults
// rather than errors.
func DecodeClient(raw []byte) (ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case KindJoinRoom:
		return decodePayload[JoinRoom](env)
	case KindSetVideo:
		return decodePayload[SetVideo](env)
	case KindChatMessage:
		return decodePayload[ChatSend](env)
	case KindSyncPlay:
		return decodePayload[PlayEvent](env)
	case KindSyncPause:
		return decodePayload[PauseEvent](env)
	case KindSyncSeek:
		return decodePayload[SeekEvent](env)
	case KindExitRoom:
		return decodePayload[ExitRoom](env)
	case KindTerminateRoom:
		return decodePayload[TerminateRoom](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// DecodeServer parses a message received from the server.
func DecodeServer(raw []byte) (ServerMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case KindRoomState:
		return decodePayload[RoomState](env)
	case KindSyncPlay:
		return decodePayload[PlaySync](env)
	case KindSyncPause:
		return decodePayload[PauseSync](env)
	case KindSyncSeek:
		return decodePayload[SeekSync](env)
	case KindSyncState:
		return decodePayload[StateSync](env)
	case KindVideoChanged:
		return decodePayload[VideoChanged](env)
	case KindOwnerChanged:
		return decodePayload[OwnerChanged](env)
	case KindRoomExited:
		return decodePayload[RoomExited](env)
	case KindRoomTerminated:
		return decodePayload[RoomTerminated](env)
	case KindJoinError:
		return decodePayload[JoinError](env)
	case KindActionError:
		return decodePayload[ActionError](env)
	case KindChatMessage:
		return decodePayload[ChatMessage](env)
	case KindSystemMessage:
		return decodePayload[SystemMessage](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodePayload[T any](env Envelope) (T, error) {
	var m T
	if len(env.Data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(env.Data, &m); err != nil {
		return m, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return m, nil
}
