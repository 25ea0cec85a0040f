package mongostore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
)

const (
	keyID  = "_id"
	keySeq = "_seq"
)

// Store is a record.Store backed by one MongoDB collection per record collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ record.Store = (*Store)(nil)

func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Create(ctx context.Context, collection string, data record.Doc) (string, error) {
	doc := bson.M(record.Clone(data))
	id := uuid.New().String()
	now := record.Now()
	doc[record.FieldID] = id
	doc[record.FieldCreatedAt] = record.Timestamp(now)
	doc[keyID] = id
	doc[keySeq] = now.UnixNano()

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", core.NewWriteError("create", collection, err)
	}
	return id, nil
}

func setPatch(patch record.Doc) bson.M {
	set := bson.M(record.Clone(patch))
	delete(set, record.FieldID)
	delete(set, keyID)
	set[record.FieldUpdatedAt] = record.Timestamp(record.Now())
	return bson.M{"$set": set}
}

func (s *Store) Update(ctx context.Context, collection, id string, patch record.Doc) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{keyID: id}, setPatch(patch))
	if err != nil {
		return core.NewWriteError("update", collection, err)
	}
	if res.MatchedCount == 0 {
		return core.NewWriteError("update", collection, record.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateIf(ctx context.Context, collection, id string, expect record.Filter, patch record.Doc) (bool, error) {
	if err := expect.Validate(); err != nil {
		return false, core.NewWriteError("update", collection, err)
	}
	// an equality on a scalar and an array membership test share the same mongo syntax
	filter := bson.M{keyID: id, expect.Field: expect.Value}

	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, setPatch(patch))
	if err != nil {
		return false, core.NewWriteError("update", collection, err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{keyID: id})
	if err != nil {
		return false, core.NewWriteError("update", collection, err)
	}
	if n == 0 {
		return false, core.NewWriteError("update", collection, record.ErrNotFound)
	}
	return false, nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta float64) error {
	update := bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{record.FieldUpdatedAt: record.Timestamp(record.Now())},
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{keyID: id}, update)
	if err != nil {
		return core.NewWriteError("increment", collection, err)
	}
	if res.MatchedCount == 0 {
		return core.NewWriteError("increment", collection, record.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{keyID: id}); err != nil {
		return core.NewWriteError("delete", collection, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (record.Doc, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{keyID: id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.NewReadError("get", collection, record.ErrNotFound)
		}
		return nil, core.NewReadError("get", collection, err)
	}
	return toDoc(doc), nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...record.Filter) ([]record.Doc, error) {
	filter := bson.D{}
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, core.NewReadError("query", collection, err)
		}
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}

	opts := options.Find().SetSort(bson.D{{Key: keySeq, Value: 1}})
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, core.NewReadError("query", collection, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	docs := make([]record.Doc, 0)
	for cur.Next(ctx) {
		var doc bson.M
		if err = cur.Decode(&doc); err != nil {
			return nil, core.NewReadError("query", collection, err)
		}
		docs = append(docs, toDoc(doc))
	}
	if err = cur.Err(); err != nil {
		return nil, core.NewReadError("query", collection, err)
	}
	return docs, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// DropCollections removes every collection of the database; used by tests.
func (s *Store) DropCollections(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// toDoc strips mongo bookkeeping keys and normalises bson types (primitive.A, nested bson.M) to JSON ones.
func toDoc(m bson.M) record.Doc {
	delete(m, keyID)
	delete(m, keySeq)
	return record.Clone(record.Doc(m))
}
