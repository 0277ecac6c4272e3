package mongo

import (
	"context"
	"errors"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sequencesCollection = "database_sequences"

var errNegativeSequence = errors.New("sequence value is not positive")

// SequenceRepository issues IDs from a per-name counter document updated with
// an atomic $inc, so every API replica shares one sequence.
type SequenceRepository struct {
	coll *mongo.Collection
}

type sequenceDoc struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

func NewSequenceRepository(m *db.Mongo) *SequenceRepository {
	return &SequenceRepository{coll: m.Collection(sequencesCollection)}
}

func (r *SequenceRepository) Next(ctx context.Context, name string) (uint64, error) {
	seq, err := r.inc(ctx, name)
	// Two first callers can both try the upsert; the loser sees a duplicate
	// _id and the document now exists.
	if err != nil && mongo.IsDuplicateKeyError(err) {
		seq, err = r.inc(ctx, name)
	}
	if err != nil {
		return 0, unavailable("next sequence", err)
	}
	if seq <= 0 {
		return 0, unavailable("next sequence", errNegativeSequence)
	}
	return uint64(seq), nil
}

func (r *SequenceRepository) inc(ctx context.Context, name string) (int64, error) {
	var doc sequenceDoc
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Seq, err
}
