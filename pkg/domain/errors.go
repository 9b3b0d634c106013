package domain

import "errors"

// ErrSnapshotNotFound is returned when no snapshot exists for an agent in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrUnknownAgent is returned when an agent type is not hosted.
var ErrUnknownAgent = errors.New("unknown agent")
