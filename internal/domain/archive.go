package domain

import "time"

// CopyKind tells which overlay an archive holds.
type CopyKind string

const (
	CopyKindWeek    CopyKind = "week"
	CopyKindSession CopyKind = "session"
)

// CopyArchive stores metadata about a personalized copy written to object
// storage right before it was deleted by a reset or a propagation. The
// actual JSON body resides in S3.
type CopyArchive struct {
	ObjectKey  string    `json:"objectKey"` // The key in the archive bucket
	Kind       CopyKind  `json:"kind"`
	CopyID     string    `json:"copyId"`
	ClientID   string    `json:"clientId"`
	Reason     string    `json:"reason"` // "reset", "propagation"
	ArchivedAt time.Time `json:"archivedAt"`
}
