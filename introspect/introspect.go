package introspect

import (
	"context"
	"fmt"
	"sort"

	"github.com/ridoystarlord/mongoprov/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ExistingCollection is a collection found in the live database together
// with its secondary indexes. The implicit _id_ index is omitted.
type ExistingCollection struct {
	Name    string
	Indexes []schema.Index
}

// IndexByName returns the live index called name.
func (c ExistingCollection) IndexByName(name string) (schema.Index, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return schema.Index{}, false
}

// IndexLike returns a live index with the same key specification as idx,
// whatever its name and uniqueness.
func (c ExistingCollection) IndexLike(idx schema.Index) (schema.Index, bool) {
	sig := idx.Signature()
	for _, live := range c.Indexes {
		if live.Signature() == sig {
			return live, true
		}
	}
	return schema.Index{}, false
}

// State is a snapshot of the live database.
type State struct {
	Database    string
	Collections map[string]ExistingCollection
}

func NewState(database string) *State {
	return &State{Database: database, Collections: map[string]ExistingCollection{}}
}

func (s *State) Collection(name string) (ExistingCollection, bool) {
	c, ok := s.Collections[name]
	return c, ok
}

// Names returns the live collection names sorted.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.Collections))
	for n := range s.Collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CollectionsOnly filters listCollections down to plain collections. Views
// and timeseries buckets reject listIndexes and are never provisioned.
var CollectionsOnly = bson.D{{Key: "type", Value: "collection"}}

// IntrospectDatabase lists every collection of db and its indexes.
func IntrospectDatabase(ctx context.Context, db *mongo.Database) (*State, error) {
	names, err := db.ListCollectionNames(ctx, CollectionsOnly)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	state := NewState(db.Name())
	for _, name := range names {
		indexes, err := ListIndexes(ctx, db.Collection(name))
		if err != nil {
			return nil, fmt.Errorf("listing indexes for collection %s: %w", name, err)
		}
		state.Collections[name] = ExistingCollection{Name: name, Indexes: indexes}
	}
	return state, nil
}

// ListIndexes returns the secondary indexes of coll.
func ListIndexes(ctx context.Context, coll *mongo.Collection) ([]schema.Index, error) {
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var indexes []schema.Index
	for cursor.Next(ctx) {
		idx, err := DecodeIndex(cursor.Current)
		if err != nil {
			return nil, err
		}
		if idx.Name == "_id_" {
			continue
		}
		indexes = append(indexes, idx)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return indexes, nil
}

type indexDocument struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  bool   `bson:"unique"`
	Weights bson.D `bson:"weights"`
}

// DecodeIndex converts one listIndexes entry into a schema.Index. Text
// indexes are stored by mongod as {_fts: "text", _ftsx: 1} with the indexed
// fields under "weights"; they are expanded back into text keys.
func DecodeIndex(raw bson.Raw) (schema.Index, error) {
	var doc indexDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return schema.Index{}, fmt.Errorf("decoding index: %w", err)
	}

	idx := schema.Index{Name: doc.Name, Unique: doc.Unique}
	for _, e := range doc.Key {
		switch e.Key {
		case "_fts":
			fields := make([]string, 0, len(doc.Weights))
			for _, w := range doc.Weights {
				fields = append(fields, w.Key)
			}
			sort.Strings(fields)
			for _, f := range fields {
				idx.Keys = append(idx.Keys, schema.Key{Field: f, Kind: schema.Text})
			}
		case "_ftsx":
		default:
			kind, err := keyKind(e.Value)
			if err != nil {
				return schema.Index{}, fmt.Errorf("index %s, field %s: %w", doc.Name, e.Key, err)
			}
			idx.Keys = append(idx.Keys, schema.Key{Field: e.Key, Kind: kind})
		}
	}
	return idx, nil
}

func keyKind(v interface{}) (schema.KeyKind, error) {
	var n float64
	switch t := v.(type) {
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case float64:
		n = t
	case string:
		// hashed, 2dsphere and friends never match a declared kind.
		return schema.KeyKind(t), nil
	default:
		return "", fmt.Errorf("unsupported key value %v (%T)", v, v)
	}
	if n < 0 {
		return schema.Desc, nil
	}
	return schema.Asc, nil
}
