package mongo

import (
	"context"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/events"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/db"
	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	clickEventsCollection = "click_events"

	directReferer = "Direct"
	mobileDevice  = "Mobile"
	desktopDevice = "Desktop"
)

// ClickEventsRepository stores one document per click and answers the
// analytics queries over them.
type ClickEventsRepository struct {
	coll *mongo.Collection
}

type clickDoc struct {
	EventID   string    `bson:"eventId"`
	LinkID    int64     `bson:"urlId"`
	OwnerID   string    `bson:"ownerId,omitempty"`
	VisitorID string    `bson:"visitorId,omitempty"`
	Referer   string    `bson:"referer,omitempty"`
	UserAgent string    `bson:"userAgent,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

func NewClickEventsRepository(m *db.Mongo) (*ClickEventsRepository, error) {
	repo := &ClickEventsRepository{coll: m.Collection(clickEventsCollection)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_event_id"),
		},
		{
			Keys:    bson.D{{Key: "urlId", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("url_timestamp_desc"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("owner_id"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// Save is idempotent on EventID so redelivered events are not double counted.
func (r *ClickEventsRepository) Save(ctx context.Context, ev events.ClickRecorded) error {
	_, err := r.coll.InsertOne(ctx, clickDoc{
		EventID:   ev.EventID,
		LinkID:    int64(ev.LinkID),
		OwnerID:   ev.OwnerID,
		VisitorID: ev.VisitorID,
		Referer:   ev.Referer,
		UserAgent: ev.UserAgent,
		Timestamp: ev.OccurredAt.UTC(),
	})
	if err == nil || mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return unavailable("insert click", err)
}

func (r *ClickEventsRepository) Summary(ctx context.Context, linkID uint64) (links.ClickSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"urlId": int64(linkID)}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"last":  bson.M{"$max": "$timestamp"},
		}}},
	}

	var rows []struct {
		Total int64     `bson:"total"`
		Last  time.Time `bson:"last"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return links.ClickSummary{}, err
	}
	if len(rows) == 0 || rows[0].Total == 0 {
		return links.ClickSummary{}, nil
	}

	last := rows[0].Last.UTC()
	return links.ClickSummary{TotalClicks: rows[0].Total, LastClick: &last}, nil
}

func (r *ClickEventsRepository) TopReferrers(ctx context.Context, linkID uint64, limit int) ([]links.ReferrerCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"urlId": int64(linkID)}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$ifNull": bson.A{"$referer", directReferer}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	var rows []groupCount
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, err
	}

	out := make([]links.ReferrerCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, links.ReferrerCount{Referer: row.Key, Count: row.Count})
	}
	return out, nil
}

// DeviceBreakdown splits clicks on whether the user agent carries the "Mobi"
// token browsers use to flag mobile devices.
func (r *ClickEventsRepository) DeviceBreakdown(ctx context.Context, linkID uint64) ([]links.DeviceCount, error) {
	isMobile := bson.M{"$gte": bson.A{
		bson.M{"$indexOfCP": bson.A{bson.M{"$ifNull": bson.A{"$userAgent", ""}}, "Mobi"}},
		0,
	}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"urlId": int64(linkID)}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$cond": bson.A{isMobile, mobileDevice, desktopDevice}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	var rows []groupCount
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, err
	}

	out := make([]links.DeviceCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, links.DeviceCount{DeviceType: row.Key, Count: row.Count})
	}
	return out, nil
}

// DailyCounts groups clicks in [from, to) by UTC calendar day. Days without
// clicks are absent.
func (r *ClickEventsRepository) DailyCounts(ctx context.Context, linkID uint64, from, to time.Time) ([]links.DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"urlId":     int64(linkID),
			"timestamp": bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$timestamp",
			}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	var rows []groupCount
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, err
	}

	out := make([]links.DailyCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, links.DailyCount{Date: row.Key, Count: row.Count})
	}
	return out, nil
}

func (r *ClickEventsRepository) DeleteByLink(ctx context.Context, linkID uint64) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"urlId": int64(linkID)})
	if err != nil {
		return 0, unavailable("delete link clicks", err)
	}
	return res.DeletedCount, nil
}

func (r *ClickEventsRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return 0, unavailable("delete owner clicks", err)
	}
	return res.DeletedCount, nil
}

func (r *ClickEventsRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return unavailable("aggregate clicks", err)
	}
	if err := cur.All(ctx, out); err != nil {
		return unavailable("decode clicks", err)
	}
	return nil
}
