package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/runner"
	"github.com/ridoystarlord/mongoprov/schema"
	"github.com/ridoystarlord/mongoprov/validator"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Server error codes the store translates.
const (
	codeNamespaceExists       = 48
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// Store implements runner.Store and validator.DuplicateScanner on a MongoDB
// database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	_ runner.Store               = (*Store)(nil)
	_ validator.DuplicateScanner = (*Store)(nil)
)

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Inspect(ctx context.Context) (*introspect.State, error) {
	return introspect.IntrospectDatabase(ctx, s.db)
}

func (s *Store) CollectionNames(ctx context.Context) ([]string, error) {
	return s.db.ListCollectionNames(ctx, introspect.CollectionsOnly)
}

func (s *Store) CreateCollection(ctx context.Context, name string) error {
	err := s.db.CreateCollection(ctx, name)
	if hasCode(err, codeNamespaceExists) {
		return fmt.Errorf("%w: %v", runner.ErrCollectionExists, err)
	}
	return err
}

// IndexModel converts a declared index into the driver's form.
func IndexModel(idx schema.Index) mongo.IndexModel {
	keys := make(bson.D, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: k.Kind.Value()})
	}
	opts := options.Index().SetName(idx.EffectiveName())
	if idx.Unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

func (s *Store) CreateIndex(ctx context.Context, collection string, idx schema.Index) error {
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, IndexModel(idx))
	if err == nil {
		return nil
	}
	if hasCode(err, codeIndexOptionsConflict, codeIndexKeySpecsConflict) || mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", runner.ErrIndexConflict, err)
	}
	return err
}

func (s *Store) CountAdmins(ctx context.Context, collection string) (int64, error) {
	return s.db.Collection(collection).CountDocuments(ctx, bson.D{})
}

func (s *Store) DeleteAdmins(ctx context.Context, collection string) (int64, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) InsertAdmin(ctx context.Context, collection string, rec schema.AdminRecord) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, rec)
	return err
}

// Admins returns every record of the admin collection.
func (s *Store) Admins(ctx context.Context, collection string) ([]schema.AdminRecord, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var out []schema.AdminRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindDuplicates groups the collection by fields and returns up to limit
// values held by more than one document. Missing fields group as null, which
// is how a unique index treats them too.
func (s *Store) FindDuplicates(ctx context.Context, collection string, fields []string, limit int) ([]validator.Duplicate, error) {
	var groupKey interface{}
	if len(fields) == 1 {
		groupKey = "$" + fields[0]
	} else {
		key := bson.D{}
		for i, f := range fields {
			key = append(key, bson.E{Key: fmt.Sprintf("f%d", i), Value: "$" + f})
		}
		groupKey = key
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: groupKey},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var dups []validator.Duplicate
	for cursor.Next(ctx) {
		var row struct {
			ID    bson.RawValue `bson:"_id"`
			Count int64         `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		dups = append(dups, validator.Duplicate{Value: row.ID.String(), Count: row.Count})
	}
	return dups, cursor.Err()
}

// ServerVersion reports the mongod version from buildInfo.
func (s *Store) ServerVersion(ctx context.Context) (string, error) {
	var info struct {
		Version string `bson:"version"`
	}
	err := s.db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info)
	return info.Version, err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func hasCode(err error, codes ...int) bool {
	if err == nil {
		return false
	}
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.HasErrorCode(c) {
			return true
		}
	}
	return false
}
