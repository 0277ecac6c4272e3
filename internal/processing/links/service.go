package links

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/events"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultCounterName = "url_sequence"
	DefaultTTL         = 30 * 24 * time.Hour

	maxURLLength      = 2048
	trendDays         = 7
	topReferrersLimit = 5
)

var tracer = otel.Tracer("github.com/IgorGrieder/minimizurl/internal/processing/links")

// reservedCodes are first path segments the HTTP server routes elsewhere, so
// an alias with one of these names could never be resolved.
var reservedCodes = map[string]struct{}{
	"api":     {},
	"health":  {},
	"metrics": {},
	"ready":   {},
}

// IsReservedCode reports whether code is unavailable as a custom alias.
func IsReservedCode(code string) bool {
	_, ok := reservedCodes[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

type Service struct {
	linkRepo   LinkRepository
	sequencer  Sequencer
	codec      Codec
	clicks     ClickRecorder
	clickStore ClickStore
	ttl        time.Duration
	counter    string
	now        func() time.Time
	newEventID func() string
}

func NewService(linkRepo LinkRepository, sequencer Sequencer, clicks ClickRecorder, clickStore ClickStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Service{
		linkRepo:   linkRepo,
		sequencer:  sequencer,
		codec:      NewBase62(),
		clicks:     clicks,
		clickStore: clickStore,
		ttl:        ttl,
		counter:    DefaultCounterName,
		now:        time.Now,
		newEventID: func() string { return uuid.NewString() },
	}
}

// Codec exposes the transform used for generated codes.
func (s *Service) Codec() Codec { return s.codec }

// CreateAuto stores url under the next sequence ID and returns its encoding.
func (s *Service) CreateAuto(ctx context.Context, rawURL string, owner Owner) (code string, err error) {
	ctx, span := tracer.Start(ctx, "links.CreateAuto")
	defer func() { endSpan(span, err) }()

	originalURL, err := cleanURL(rawURL)
	if err != nil {
		return "", err
	}

	link, err := s.insertNew(ctx, originalURL, "", owner)
	if err != nil {
		return "", err
	}

	span.SetAttributes(attribute.Int64("link.id", int64(link.ID)))
	return s.codec.Encode(link.ID), nil
}

// CreateCustom stores url under the caller's alias. The existence check only
// avoids burning a sequence ID; the store's unique index decides the winner.
func (s *Service) CreateCustom(ctx context.Context, rawURL, customCode string, owner Owner) (code string, err error) {
	ctx, span := tracer.Start(ctx, "links.CreateCustom")
	defer func() { endSpan(span, err) }()

	originalURL, err := cleanURL(rawURL)
	if err != nil {
		return "", err
	}
	customCode = strings.TrimSpace(customCode)
	if customCode == "" || IsReservedCode(customCode) {
		return "", ErrInvalidCode
	}

	exists, err := s.linkRepo.ExistsByCustomCode(ctx, customCode)
	if err != nil {
		return "", storageFailure(err)
	}
	if exists {
		return "", ErrConflict
	}

	if _, err := s.insertNew(ctx, originalURL, customCode, owner); err != nil {
		return "", err
	}
	return customCode, nil
}

func (s *Service) insertNew(ctx context.Context, originalURL, customCode string, owner Owner) (*Link, error) {
	id, err := s.sequencer.Next(ctx, s.counter)
	if err != nil {
		return nil, storageFailure(err)
	}

	now := s.now().UTC()
	link := &Link{
		ID:          id,
		OriginalURL: originalURL,
		CustomCode:  customCode,
		Owner:       owner,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.linkRepo.Insert(ctx, link); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrConflict
		}
		return nil, storageFailure(err)
	}
	return link, nil
}

// Resolve returns the original URL for code, counts the click, pushes the
// expiry forward and hands a click event to the recorder.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (originalURL string, err error) {
	ctx, span := tracer.Start(ctx, "links.Resolve")
	defer func() { endSpan(span, err) }()

	res, err := s.lookup(ctx, in.Code)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("links.lookup", res.kind.String()))
	if res.kind == lookupNotFound {
		return "", ErrNotFound
	}

	now := s.now().UTC()
	link, err := s.linkRepo.IncrementClicksAndExtend(ctx, res.link.ID, now, now.Add(s.ttl))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", storageFailure(err)
	}

	if s.clicks != nil {
		s.clicks.Record(ctx, events.ClickRecorded{
			EventID:    s.newEventID(),
			LinkID:     link.ID,
			OwnerID:    link.Owner.ID,
			VisitorID:  in.Visitor.ID,
			Referer:    strings.TrimSpace(in.Referer),
			UserAgent:  strings.TrimSpace(in.UserAgent),
			OccurredAt: now,
		})
	}

	return link.OriginalURL, nil
}

func (s *Service) GetStats(ctx context.Context, code string) (*Link, error) {
	return s.find(ctx, code)
}

// GetForOwner is the authorization gate for every owner-only operation.
func (s *Service) GetForOwner(ctx context.Context, code string, owner Owner) (*Link, error) {
	link, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}
	if owner.IsGuest() || link.Owner.IsGuest() || link.Owner.ID != owner.ID {
		return nil, ErrForbidden
	}
	return link, nil
}

func (s *Service) UpdateURL(ctx context.Context, code, rawURL string, owner Owner) (link *Link, err error) {
	ctx, span := tracer.Start(ctx, "links.UpdateURL")
	defer func() { endSpan(span, err) }()

	current, err := s.GetForOwner(ctx, code, owner)
	if err != nil {
		return nil, err
	}
	newURL, err := cleanURL(rawURL)
	if err != nil {
		return nil, err
	}

	link, err = s.linkRepo.UpdateURL(ctx, current.ID, newURL, s.now().UTC().Add(s.ttl))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageFailure(err)
	}
	return link, nil
}

func (s *Service) Delete(ctx context.Context, code string, owner Owner) (err error) {
	ctx, span := tracer.Start(ctx, "links.Delete")
	defer func() { endSpan(span, err) }()

	link, err := s.GetForOwner(ctx, code, owner)
	if err != nil {
		return err
	}

	deleted, err := s.linkRepo.DeleteByID(ctx, link.ID)
	if err != nil {
		return storageFailure(err)
	}
	if !deleted {
		return ErrNotFound
	}

	if s.clickStore != nil {
		if _, err := s.clickStore.DeleteByLink(ctx, link.ID); err != nil {
			logger.Warn("failed to delete click events for link",
				zap.Error(err),
				zap.Uint64("link_id", link.ID),
			)
		}
	}
	return nil
}

func (s *Service) GetAnalytics(ctx context.Context, code string, owner Owner) (*Analytics, error) {
	link, err := s.GetForOwner(ctx, code, owner)
	if err != nil {
		return nil, err
	}
	if s.clickStore == nil {
		return &Analytics{}, nil
	}

	summary, err := s.clickStore.Summary(ctx, link.ID)
	if err != nil {
		return nil, storageFailure(err)
	}
	referrers, err := s.clickStore.TopReferrers(ctx, link.ID, topReferrersLimit)
	if err != nil {
		return nil, storageFailure(err)
	}
	devices, err := s.clickStore.DeviceBreakdown(ctx, link.ID)
	if err != nil {
		return nil, storageFailure(err)
	}

	to := dateOnly(s.now().UTC())
	from := to.AddDate(0, 0, -(trendDays - 1))
	counts, err := s.clickStore.DailyCounts(ctx, link.ID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, storageFailure(err)
	}

	return &Analytics{
		Summary:         summary,
		TopReferrers:    referrers,
		DeviceBreakdown: devices,
		DailyTrend:      fillDays(counts, from, to),
	}, nil
}

func (s *Service) CountForOwner(ctx context.Context, owner Owner) (uint64, error) {
	if owner.IsGuest() {
		return 0, ErrForbidden
	}
	n, err := s.linkRepo.CountByOwner(ctx, owner.ID)
	if err != nil {
		return 0, storageFailure(err)
	}
	return n, nil
}

// DeleteOwnerData removes every click event and link belonging to owner.
func (s *Service) DeleteOwnerData(ctx context.Context, owner Owner) (deleted int64, err error) {
	ctx, span := tracer.Start(ctx, "links.DeleteOwnerData")
	defer func() { endSpan(span, err) }()

	if owner.IsGuest() {
		return 0, ErrForbidden
	}

	if s.clickStore != nil {
		if _, err := s.clickStore.DeleteByOwner(ctx, owner.ID); err != nil {
			return 0, storageFailure(err)
		}
	}

	deleted, err = s.linkRepo.DeleteByOwner(ctx, owner.ID)
	if err != nil {
		return 0, storageFailure(err)
	}
	return deleted, nil
}

func (s *Service) find(ctx context.Context, code string) (*Link, error) {
	res, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if res.kind == lookupNotFound {
		return nil, ErrNotFound
	}
	return res.link, nil
}

func cleanURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxURLLength {
		return "", ErrInvalidURL
	}
	return raw, nil
}

func storageFailure(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil && errors.Is(err, ErrStorageUnavailable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func fillDays(counts []DailyCount, from, to time.Time) []DailyCount {
	byDate := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c.Count
	}

	out := make([]DailyCount, 0, int(to.Sub(from).Hours()/24)+1)
	for day := dateOnly(from); !day.After(dateOnly(to)); day = day.AddDate(0, 0, 1) {
		ds := day.Format(time.DateOnly)
		out = append(out, DailyCount{
			Date:  ds,
			Count: byDate[ds],
		})
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
