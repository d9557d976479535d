/*
Package mongo provides the remote document implementation of production.Store.

PURPOSE:
  Shares one tracker between several devices. Every entity type lives in
  its own MongoDB collection named after production.Collection
  (workers, places, overlockEntries, tasselEntries, foldEntries,
  deliveryEntries). The record id is the document _id.

DOCUMENT SHAPE:
  The record's own fields (bson tags on the production types) plus
    seq: int64 insertion stamp, used for list ordering
  decimal.Decimal is stored as a string through a custom bson registry.

CONSISTENCY:
  Each Add and Remove is a single round trip with no transaction. Two
  clients validating against the same upstream entry at once can both
  write; nothing here prevents that.

MIGRATION:
  A "meta" document {_id: "schema", version: n} records the applied
  version. Steps form a forward-only chain like the SQLite store. A
  database stamped newer than this binary is refused.
*/
package mongo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/warp/towel-workflow/production"
)

const (
	metaCollection = "meta"
	schemaDocID    = "schema"
)

// Store implements production.Store on MongoDB.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	registry *bsoncodec.Registry
	lastSeq  atomic.Int64
}

var _ production.Store = (*Store)(nil)

// New connects to uri, verifies the connection and migrates dbName.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	registry := NewRegistry()
	clientOptions := options.Client().ApplyURI(uri).SetRegistry(registry)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName), registry: registry}
	if err := s.migrate(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to migrate mongodb: %w", err)
	}
	return s, nil
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// =============================================================================
// RECORD STORE (production.Store interface)
// =============================================================================

// Add inserts rec as a document. An empty id is replaced by a generated one.
func (s *Store) Add(ctx context.Context, rec production.Record) (string, error) {
	rec = production.EnsureID(rec)
	c := rec.Collection()

	doc, err := s.document(rec)
	if err != nil {
		return "", production.NewStoreError("add", c, err)
	}
	if _, err := s.db.Collection(string(c)).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", &production.DuplicateIDError{Collection: c, ID: rec.RecordID()}
		}
		return "", production.NewStoreError("add", c, fmt.Errorf("failed to insert document: %w", err))
	}
	return rec.RecordID(), nil
}

// List returns every document of c in insertion order.
func (s *Store) List(ctx context.Context, c production.Collection) ([]production.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := s.db.Collection(string(c)).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, production.NewStoreError("list", c, fmt.Errorf("failed to query documents: %w", err))
	}
	defer cur.Close(ctx)

	var records []production.Record
	for cur.Next(ctx) {
		rec, err := decodeRecord(c, cur.Decode)
		if err != nil {
			return nil, production.NewStoreError("list", c, err)
		}
		records = append(records, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, production.NewStoreError("list", c, err)
	}
	return records, nil
}

// Find returns the document with _id = id, or false when absent.
func (s *Store) Find(ctx context.Context, c production.Collection, id string) (production.Record, bool, error) {
	res := s.db.Collection(string(c)).FindOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, production.NewStoreError("find", c, err)
	}
	rec, err := decodeRecord(c, res.Decode)
	if err != nil {
		return nil, false, production.NewStoreError("find", c, err)
	}
	return rec, true, nil
}

// Remove deletes id from c. Absent ids return false.
func (s *Store) Remove(ctx context.Context, c production.Collection, id string) (bool, error) {
	res, err := s.db.Collection(string(c)).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, production.NewStoreError("remove", c, err)
	}
	return res.DeletedCount > 0, nil
}

// document encodes rec with the store registry and appends the seq stamp.
func (s *Store) document(rec production.Record) (bson.D, error) {
	raw, err := bson.MarshalWithRegistry(s.registry, rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return append(doc, bson.E{Key: "seq", Value: s.nextSeq()}), nil
}

// nextSeq returns a strictly increasing stamp seeded from the clock.
func (s *Store) nextSeq() int64 {
	for {
		now := time.Now().UnixNano()
		last := s.lastSeq.Load()
		if now <= last {
			now = last + 1
		}
		if s.lastSeq.CompareAndSwap(last, now) {
			return now
		}
	}
}

func decodeRecord(c production.Collection, decode func(any) error) (production.Record, error) {
	switch c {
	case production.CollectionWorkers:
		return decodeAs[production.Worker](decode)
	case production.CollectionPlaces:
		return decodeAs[production.Place](decode)
	case production.CollectionOverlock:
		return decodeAs[production.OverlockEntry](decode)
	case production.CollectionTassel:
		return decodeAs[production.TasselEntry](decode)
	case production.CollectionFold:
		return decodeAs[production.FoldEntry](decode)
	case production.CollectionDeliveries:
		return decodeAs[production.DeliveryEntry](decode)
	}
	return nil, fmt.Errorf("unknown collection %q", c)
}

func decodeAs[T production.Record](decode func(any) error) (production.Record, error) {
	var rec T
	if err := decode(&rec); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return rec, nil
}

// =============================================================================
// MIGRATIONS
// =============================================================================

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, db *mongo.Database) error
}

var entryCollections = []production.Collection{
	production.CollectionOverlock,
	production.CollectionTassel,
	production.CollectionFold,
	production.CollectionDeliveries,
}

var migrations = []migration{
	{1, "initial collections", func(context.Context, *mongo.Database) error { return nil }},
	{2, "index entry dates", func(ctx context.Context, db *mongo.Database) error {
		for _, c := range entryCollections {
			if _, err := db.Collection(string(c)).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys: bson.D{{Key: "date", Value: 1}},
			}); err != nil {
				return fmt.Errorf("index %s: %w", c, err)
			}
		}
		return nil
	}},
	{3, "index insertion order", func(ctx context.Context, db *mongo.Database) error {
		for _, c := range production.Collections {
			if _, err := db.Collection(string(c)).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys: bson.D{{Key: "seq", Value: 1}},
			}); err != nil {
				return fmt.Errorf("index %s: %w", c, err)
			}
		}
		return nil
	}},
}

// LatestSchemaVersion is the version a fully migrated database carries.
var LatestSchemaVersion = migrations[len(migrations)-1].version

type schemaDoc struct {
	ID        string    `bson:"_id"`
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"appliedAt"`
}

// SchemaVersion returns the applied version, 0 for a fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var doc schemaDoc
	err := s.db.Collection(metaCollection).FindOne(ctx, bson.D{{Key: "_id", Value: schemaDocID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

func (s *Store) migrate(ctx context.Context) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > LatestSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, LatestSchemaVersion)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := m.apply(ctx, s.db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		_, err := s.db.Collection(metaCollection).ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: schemaDocID}},
			schemaDoc{ID: schemaDocID, Version: m.version, AppliedAt: time.Now().UTC()},
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("stamp migration %d: %w", m.version, err)
		}
	}
	return nil
}

// =============================================================================
// REGISTRY - decimal.Decimal as string
// =============================================================================

var decimalType = reflect.TypeOf(decimal.Decimal{})

// NewRegistry returns the default bson registry extended with a string codec
// for decimal.Decimal.
func NewRegistry() *bsoncodec.Registry {
	registry := bson.NewRegistry()
	registry.RegisterTypeEncoder(decimalType, bsoncodec.ValueEncoderFunc(encodeDecimal))
	registry.RegisterTypeDecoder(decimalType, bsoncodec.ValueDecoderFunc(decodeDecimal))
	return registry
}

func encodeDecimal(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != decimalType {
		return bsoncodec.ValueEncoderError{Name: "encodeDecimal", Types: []reflect.Type{decimalType}, Received: val}
	}
	return vw.WriteString(val.Interface().(decimal.Decimal).String())
}

func decodeDecimal(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != decimalType {
		return bsoncodec.ValueDecoderError{Name: "decodeDecimal", Types: []reflect.Type{decimalType}, Received: val}
	}

	var (
		d   decimal.Decimal
		err error
	)
	switch vr.Type() {
	case bsontype.String:
		var s string
		if s, err = vr.ReadString(); err == nil {
			d, err = decimal.NewFromString(s)
		}
	case bsontype.Double:
		var f float64
		if f, err = vr.ReadDouble(); err == nil {
			d = decimal.NewFromFloat(f)
		}
	case bsontype.Int32:
		var i int32
		if i, err = vr.ReadInt32(); err == nil {
			d = decimal.NewFromInt32(i)
		}
	case bsontype.Int64:
		var i int64
		if i, err = vr.ReadInt64(); err == nil {
			d = decimal.NewFromInt(i)
		}
	default:
		return fmt.Errorf("cannot decode %v into decimal.Decimal", vr.Type())
	}
	if err != nil {
		return err
	}
	val.Set(reflect.ValueOf(d))
	return nil
}
