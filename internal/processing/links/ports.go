package links

import (
	"context"
	"errors"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/events"
)

var (
	ErrNotFound           = errors.New("link not found")
	ErrForbidden          = errors.New("link is not owned by caller")
	ErrConflict           = errors.New("custom code already in use")
	ErrInvalidCode        = errors.New("invalid short code")
	ErrInvalidURL         = errors.New("invalid url")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// LinkRepository persists links keyed by their numeric ID.
//
// Insert must reject a duplicate custom code with ErrConflict even when the
// caller's ExistsByCustomCode pre-check passed. Lookups that match nothing
// return ErrNotFound, never a zero Link.
type LinkRepository interface {
	Insert(ctx context.Context, link *Link) error
	ExistsByCustomCode(ctx context.Context, code string) (bool, error)
	FindByCustomCode(ctx context.Context, code string) (*Link, error)
	FindByIDOrCustomCode(ctx context.Context, id uint64, code string) (*Link, error)
	IncrementClicksAndExtend(ctx context.Context, id uint64, at, expiresAt time.Time) (*Link, error)
	UpdateURL(ctx context.Context, id uint64, url string, expiresAt time.Time) (*Link, error)
	DeleteByID(ctx context.Context, id uint64) (bool, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	CountByOwner(ctx context.Context, ownerID string) (uint64, error)
}

// Sequencer hands out strictly increasing IDs for a named counter.
type Sequencer interface {
	Next(ctx context.Context, name string) (uint64, error)
}

// Codec maps numeric IDs to short codes and back.
type Codec interface {
	Encode(id uint64) string
	Decode(code string) (uint64, error)
}

// ClickRecorder accepts click events without blocking the caller.
type ClickRecorder interface {
	Record(ctx context.Context, ev events.ClickRecorded)
}

// ClickStore answers read-only summaries over recorded clicks and removes
// them when their link or owner goes away.
type ClickStore interface {
	Summary(ctx context.Context, linkID uint64) (ClickSummary, error)
	TopReferrers(ctx context.Context, linkID uint64, limit int) ([]ReferrerCount, error)
	DeviceBreakdown(ctx context.Context, linkID uint64) ([]DeviceCount, error)
	DailyCounts(ctx context.Context, linkID uint64, from, to time.Time) ([]DailyCount, error)
	DeleteByLink(ctx context.Context, linkID uint64) (int64, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}
