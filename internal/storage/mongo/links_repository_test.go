package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/db"
	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const testNS = "minimizurl.url_mappings"

func mockMongo(mt *mtest.T) *db.Mongo {
	return &db.Mongo{Client: mt.Client, Database: mt.DB}
}

func newMockLinksRepo(mt *mtest.T) *LinksRepository {
	mt.AddMockResponses(mtest.CreateSuccessResponse()) // createIndexes
	repo, err := NewLinksRepository(mockMongo(mt))
	require.NoError(mt, err)
	return repo
}

func linkBSON(id int64, url, alias string, expiresAt time.Time) bson.D {
	doc := bson.D{
		{Key: "_id", Value: id},
		{Key: "originalUrl", Value: url},
		{Key: "clicks", Value: int64(0)},
		{Key: "createdAt", Value: expiresAt.Add(-links.DefaultTTL)},
		{Key: "expiresAt", Value: expiresAt},
	}
	if alias != "" {
		doc = append(doc, bson.E{Key: "customCode", Value: alias})
	}
	return doc
}

func TestLinksRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	exp := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

	mt.Run("insert", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Insert(ctx, &links.Link{ID: 1, OriginalURL: "https://example.com", ExpiresAt: exp})
		require.NoError(mt, err)
	})

	mt.Run("duplicate alias is a conflict", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: url_mappings index: uniq_custom_code",
		}))

		err := repo.Insert(ctx, &links.Link{ID: 2, OriginalURL: "https://example.com", CustomCode: "promo", ExpiresAt: exp})
		assert.ErrorIs(mt, err, links.ErrConflict)
	})

	mt.Run("other insert failures are storage errors", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))

		err := repo.Insert(ctx, &links.Link{ID: 3, OriginalURL: "https://example.com", ExpiresAt: exp})
		assert.ErrorIs(mt, err, links.ErrStorageUnavailable)
		assert.NotErrorIs(mt, err, links.ErrConflict)
	})

	mt.Run("find by alias", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch,
			linkBSON(9, "https://example.com", "promo", exp),
		))

		link, err := repo.FindByCustomCode(ctx, "promo")
		require.NoError(mt, err)
		assert.Equal(mt, uint64(9), link.ID)
		assert.Equal(mt, "promo", link.CustomCode)
		assert.True(mt, link.Owner.IsGuest())
	})

	mt.Run("find by alias not found", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		_, err := repo.FindByCustomCode(ctx, "nope")
		assert.ErrorIs(mt, err, links.ErrNotFound)
	})

	mt.Run("generated match wins over alias", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch,
			linkBSON(40, "https://alias.example", "b", exp),
			linkBSON(11, "https://generated.example", "", exp),
		))

		link, err := repo.FindByIDOrCustomCode(ctx, 11, "b")
		require.NoError(mt, err)
		assert.Equal(mt, "https://generated.example", link.OriginalURL)
		assert.Empty(mt, link.CustomCode)
	})

	mt.Run("alias match when no generated link", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch,
			linkBSON(40, "https://alias.example", "b", exp),
		))

		link, err := repo.FindByIDOrCustomCode(ctx, 11, "b")
		require.NoError(mt, err)
		assert.Equal(mt, "b", link.CustomCode)
	})

	mt.Run("increment returns updated link", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		later := exp.Add(24 * time.Hour)
		doc := linkBSON(5, "https://example.com", "", later)
		doc = append(doc, bson.E{Key: "ownerId", Value: "alice"})
		doc[2] = bson.E{Key: "clicks", Value: int64(4)}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: doc}})

		link, err := repo.IncrementClicksAndExtend(ctx, 5, exp.Add(-time.Hour), later)
		require.NoError(mt, err)
		assert.Equal(mt, uint64(4), link.Clicks)
		assert.Equal(mt, "alice", link.Owner.ID)
		assert.True(mt, link.ExpiresAt.Equal(later))
	})

	mt.Run("increment on expired link", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		_, err := repo.IncrementClicksAndExtend(ctx, 5, exp, exp.Add(time.Hour))
		assert.ErrorIs(mt, err, links.ErrNotFound)
	})

	mt.Run("delete by id", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}},
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}},
		)

		deleted, err := repo.DeleteByID(ctx, 5)
		require.NoError(mt, err)
		assert.True(mt, deleted)

		deleted, err = repo.DeleteByID(ctx, 5)
		require.NoError(mt, err)
		assert.False(mt, deleted)
	})

	mt.Run("count by owner", func(mt *mtest.T) {
		repo := newMockLinksRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}},
		))

		n, err := repo.CountByOwner(ctx, "alice")
		require.NoError(mt, err)
		assert.Equal(mt, uint64(3), n)
	})
}

func TestLinkDocMapping(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in := &links.Link{
		ID:          42,
		OriginalURL: "https://example.com",
		CustomCode:  "promo",
		Owner:       links.NewOwner("alice"),
		Clicks:      3,
		CreatedAt:   created,
		ExpiresAt:   created.Add(links.DefaultTTL),
	}

	doc := toLinkDoc(in)
	require.NotNil(t, doc.CustomCode)
	assert.Equal(t, "promo", *doc.CustomCode)
	assert.Equal(t, int64(42), doc.ID)
	assert.Equal(t, in, doc.toLink())

	guest := toLinkDoc(&links.Link{ID: 1})
	assert.Nil(t, guest.CustomCode)
	assert.Empty(t, guest.OwnerID)
}

func TestUnavailableWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := unavailable("insert link", cause)
	assert.ErrorIs(t, err, links.ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
}
