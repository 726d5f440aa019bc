package storage

import (
	"alcyxob/coaching-platform/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// CopyArchiver keeps the last state of a personalized copy before a reset or
// a propagation deletes it, so coaches can recover client edits.
type CopyArchiver interface {
	Archive(ctx context.Context, kind domain.CopyKind, clientID, copyID, reason string, doc any) (*domain.CopyArchive, error)
}

// ArchiveObjectKey builds archives/{clientId}/{kind}/{copyId}/{unix-nanos}-{reason}.json.
func ArchiveObjectKey(clientID string, kind domain.CopyKind, copyID, reason string, at time.Time) string {
	return fmt.Sprintf("archives/%s/%s/%s/%d-%s.json", clientID, kind, copyID, at.UnixNano(), keySegment(reason))
}

// keySegment lowercases reason and keeps it to [a-z0-9-].
func keySegment(reason string) string {
	seg := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		default:
			return '-'
		}
	}, reason)
	if seg == "" {
		return "unspecified"
	}
	return seg
}

type objectArchiver struct {
	store FileStorage
	now   func() time.Time
}

// NewCopyArchiver writes archives through store.
func NewCopyArchiver(store FileStorage) CopyArchiver {
	return &objectArchiver{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (a *objectArchiver) Archive(ctx context.Context, kind domain.CopyKind, clientID, copyID, reason string, doc any) (*domain.CopyArchive, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s copy %s: %w", kind, copyID, err)
	}
	at := a.now()
	key := ArchiveObjectKey(clientID, kind, copyID, reason, at)
	meta := map[string]string{
		"client-id":   clientID,
		"copy-kind":   string(kind),
		"copy-id":     copyID,
		"reason":      reason,
		"archived-at": at.Format(time.RFC3339Nano),
	}
	if err := a.store.PutObject(ctx, key, "application/json", body, meta); err != nil {
		return nil, fmt.Errorf("archive %s copy %s: %w", kind, copyID, err)
	}
	return &domain.CopyArchive{
		ObjectKey:  key,
		Kind:       kind,
		CopyID:     copyID,
		ClientID:   clientID,
		Reason:     reason,
		ArchivedAt: at,
	}, nil
}

// NoopArchiver is used when no bucket is configured.
type NoopArchiver struct{}

func (NoopArchiver) Archive(context.Context, domain.CopyKind, string, string, string, any) (*domain.CopyArchive, error) {
	return nil, nil
}
