package mongo

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/db"
	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const linksCollection = "url_mappings"

type LinksRepository struct {
	coll *mongo.Collection
}

type linkDoc struct {
	ID          int64     `bson:"_id"`
	OriginalURL string    `bson:"originalUrl"`
	CustomCode  *string   `bson:"customCode,omitempty"`
	OwnerID     string    `bson:"ownerId,omitempty"`
	Clicks      int64     `bson:"clicks"`
	CreatedAt   time.Time `bson:"createdAt"`
	ExpiresAt   time.Time `bson:"expiresAt"`
}

// NewLinksRepository ensures the alias uniqueness and expiry indexes exist.
// The TTL index lets MongoDB reap links that nobody resolved in time; reads
// still filter on expiresAt because the reaper runs about once a minute.
func NewLinksRepository(m *db.Mongo) (*LinksRepository, error) {
	repo := &LinksRepository{coll: m.Collection(linksCollection)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "customCode", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"customCode": bson.M{"$type": "string"}}).
				SetName("uniq_custom_code"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
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

func (r *LinksRepository) Insert(ctx context.Context, link *links.Link) error {
	_, err := r.coll.InsertOne(ctx, toLinkDoc(link))
	if err == nil {
		return nil
	}

	if link.CustomCode != "" && mongo.IsDuplicateKeyError(err) {
		return links.ErrConflict
	}
	return unavailable("insert link", err)
}

func (r *LinksRepository) ExistsByCustomCode(ctx context.Context, code string) (bool, error) {
	err := r.coll.FindOne(ctx,
		bson.M{"customCode": code},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	default:
		return false, unavailable("find alias", err)
	}
}

func (r *LinksRepository) FindByCustomCode(ctx context.Context, code string) (*links.Link, error) {
	var doc linkDoc
	err := r.coll.FindOne(ctx, bson.M{"customCode": code}).Decode(&doc)
	if err == nil {
		return doc.toLink(), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}
	return nil, unavailable("find alias", err)
}

// FindByIDOrCustomCode matches a generated link by ID or an aliased link by
// code in one round trip. A generated match wins over an alias match.
func (r *LinksRepository) FindByIDOrCustomCode(ctx context.Context, id uint64, code string) (*links.Link, error) {
	if id > math.MaxInt64 {
		return r.FindByCustomCode(ctx, code)
	}

	filter := bson.M{
		"$or": bson.A{
			bson.M{"_id": int64(id), "customCode": bson.M{"$exists": false}},
			bson.M{"customCode": code},
		},
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return nil, unavailable("find link", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []linkDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, unavailable("decode link", err)
	}
	if len(docs) == 0 {
		return nil, links.ErrNotFound
	}

	for _, doc := range docs {
		if doc.CustomCode == nil && doc.ID == int64(id) {
			return doc.toLink(), nil
		}
	}
	return docs[0].toLink(), nil
}

// IncrementClicksAndExtend counts a click and moves the expiry in one atomic
// update, only while the link is still live at the given instant.
func (r *LinksRepository) IncrementClicksAndExtend(ctx context.Context, id uint64, at, expiresAt time.Time) (*links.Link, error) {
	filter := bson.M{
		"_id":       int64(id),
		"expiresAt": bson.M{"$gt": at.UTC()},
	}
	update := bson.M{
		"$inc": bson.M{"clicks": 1},
		"$set": bson.M{"expiresAt": expiresAt.UTC()},
	}

	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *LinksRepository) UpdateURL(ctx context.Context, id uint64, url string, expiresAt time.Time) (*links.Link, error) {
	update := bson.M{
		"$set": bson.M{
			"originalUrl": url,
			"expiresAt":   expiresAt.UTC(),
		},
	}

	return r.findOneAndUpdate(ctx, bson.M{"_id": int64(id)}, update)
}

func (r *LinksRepository) DeleteByID(ctx context.Context, id uint64) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": int64(id)})
	if err != nil {
		return false, unavailable("delete link", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *LinksRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return 0, unavailable("delete owner links", err)
	}
	return res.DeletedCount, nil
}

func (r *LinksRepository) CountByOwner(ctx context.Context, ownerID string) (uint64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return 0, unavailable("count owner links", err)
	}
	return uint64(n), nil
}

func (r *LinksRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*links.Link, error) {
	var doc linkDoc
	err := r.coll.FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toLink(), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}
	return nil, unavailable("update link", err)
}

func toLinkDoc(link *links.Link) linkDoc {
	doc := linkDoc{
		ID:          int64(link.ID),
		OriginalURL: link.OriginalURL,
		OwnerID:     link.Owner.ID,
		Clicks:      int64(link.Clicks),
		CreatedAt:   link.CreatedAt.UTC(),
		ExpiresAt:   link.ExpiresAt.UTC(),
	}
	if link.CustomCode != "" {
		code := link.CustomCode
		doc.CustomCode = &code
	}
	return doc
}

func (doc linkDoc) toLink() *links.Link {
	link := &links.Link{
		ID:          uint64(doc.ID),
		OriginalURL: doc.OriginalURL,
		Owner:       links.NewOwner(doc.OwnerID),
		Clicks:      uint64(doc.Clicks),
		CreatedAt:   doc.CreatedAt,
		ExpiresAt:   doc.ExpiresAt,
	}
	if doc.CustomCode != nil {
		link.CustomCode = *doc.CustomCode
	}
	return link
}
