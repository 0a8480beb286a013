package session

import "errors"

var (
	ErrNoDisplayName   = errors.New("display name required")
	ErrNoVideoSelected = errors.New("no video selected")
	ErrBadRoomCode     = errors.New("malformed room code")
	ErrRoomUnavailable = errors.New("room unavailable")
	ErrNotIdle         = errors.New("already in a room")
	ErrNotJoined       = errors.New("not in a room")
	ErrNotHost         = errors.New("host only action")
)
