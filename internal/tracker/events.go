// Package tracker distinguishes true deletions from reorganizing moves.
// Raw filesystem events arrive on a bounded channel; a delete that is not
// claimed by a near-simultaneous create within the move window becomes a
// DeletionRecord, a claimed one becomes a MovementRecord.
package tracker

import "time"

// EventKind enumerates the raw filesystem event types the tracker
// understands.
type EventKind int

const (
	Created EventKind = iota
	Deleted
	Moved
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	}
	return "unknown"
}

// FsEvent is one typed filesystem event. NewPath is set only for Moved.
type FsEvent struct {
	Kind    EventKind
	Path    string
	NewPath string
	At      time.Time
}

// Movement types, classified heuristically from the destination path.
const (
	MoveArchive    = "archive"
	MoveTrash      = "trash"
	MoveTemporary  = "temporary"
	MoveReorganize = "reorganize"
)
