// Package mongo implements the rule store on MongoDB using the official
// driver. One Store maps to one collection of rule documents.
package mongo

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/polstore/mongoadapter/rule"
	"github.com/polstore/mongoadapter/store"
)

// Default namespace names, applied when the corresponding option is unset
// or blank.
const (
	defaultDatabase   = "casbin"
	defaultCollection = "casbin_rule"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is the MongoDB implementation of the rule store.
type Store struct {
	client *mongod.Client
	col    *mongod.Collection
}

// Option configures a Store.
type Option func(*config)

type config struct {
	database   string
	collection string
}

// WithDatabase sets the database name. Blank falls back to "casbin".
func WithDatabase(name string) Option { return func(c *config) { c.database = name } }

// WithCollection sets the collection name. Blank falls back to "casbin_rule".
func WithCollection(name string) Option { return func(c *config) { c.collection = name } }

// New creates a Store on an existing client. The caller keeps ownership of
// the client unless the store is created through Connect.
func New(client *mongod.Client, opts ...Option) *Store {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	db := orDefault(cfg.database, defaultDatabase)
	col := orDefault(cfg.collection, defaultCollection)
	return &Store{
		client: client,
		col:    client.Database(db).Collection(col),
	}
}

// Connect dials the given MongoDB URI and returns a store over it. Close
// disconnects the client.
func Connect(uri string, opts ...Option) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongoadapter: connect: %w", err)
	}
	return New(client, opts...), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func toBSON(f rule.Filter) bson.M {
	m := bson.M{}
	for k, v := range f {
		m[k] = v
	}
	return m
}

func (s *Store) FindAll(ctx context.Context) ([]rule.Rule, error) {
	cur, err := s.col.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongoadapter: find all: %w", err)
	}
	var rules []rule.Rule
	if err := cur.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("mongoadapter: decode rules: %w", err)
	}
	return rules, nil
}

func (s *Store) Find(ctx context.Context, filters []rule.Filter) ([]rule.Rule, error) {
	var f bson.M
	switch len(filters) {
	case 0:
		return nil, nil
	case 1:
		f = toBSON(filters[0])
	default:
		or := make(bson.A, len(filters))
		for i, ff := range filters {
			or[i] = toBSON(ff)
		}
		f = bson.M{"$or": or}
	}
	cur, err := s.col.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("mongoadapter: find: %w", err)
	}
	var rules []rule.Rule
	if err := cur.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("mongoadapter: decode rules: %w", err)
	}
	return rules, nil
}

func (s *Store) InsertOne(ctx context.Context, r rule.Rule) error {
	if _, err := s.col.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("mongoadapter: insert rule: %w", err)
	}
	return nil
}

func (s *Store) InsertMany(ctx context.Context, rules []rule.Rule) error {
	if _, err := s.col.InsertMany(ctx, rules); err != nil {
		return fmt.Errorf("mongoadapter: insert rules: %w", err)
	}
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, f rule.Filter) error {
	if _, err := s.col.DeleteOne(ctx, toBSON(f)); err != nil {
		return fmt.Errorf("mongoadapter: delete rule: %w", err)
	}
	return nil
}

func (s *Store) BulkDeleteOne(ctx context.Context, filters []rule.Filter) error {
	models := make([]mongod.WriteModel, len(filters))
	for i, f := range filters {
		models[i] = mongod.NewDeleteOneModel().SetFilter(toBSON(f))
	}
	if _, err := s.col.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("mongoadapter: bulk delete: %w", err)
	}
	return nil
}

func (s *Store) ReplaceOne(ctx context.Context, f rule.Filter, r rule.Rule) error {
	if _, err := s.col.ReplaceOne(ctx, toBSON(f), r); err != nil {
		return fmt.Errorf("mongoadapter: replace rule: %w", err)
	}
	return nil
}

func (s *Store) BulkReplaceOne(ctx context.Context, reps []store.Replacement) error {
	models := make([]mongod.WriteModel, len(reps))
	for i, rep := range reps {
		models[i] = mongod.NewReplaceOneModel().
			SetFilter(toBSON(rep.Filter)).
			SetReplacement(rep.Rule)
	}
	if _, err := s.col.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("mongoadapter: bulk replace: %w", err)
	}
	return nil
}

func (s *Store) Drop(ctx context.Context) error {
	if err := s.col.Drop(ctx); err != nil {
		return fmt.Errorf("mongoadapter: drop collection: %w", err)
	}
	return nil
}

// Migrate creates a compound index over the rule fields so filtered
// removals resolve without collection scans.
func (s *Store) Migrate(ctx context.Context) error {
	keys := bson.D{{Key: "ptype", Value: 1}}
	for i := 0; i < rule.MaxFields; i++ {
		keys = append(keys, bson.E{Key: rule.FieldName(i), Value: 1})
	}
	_, err := s.col.Indexes().CreateMany(ctx, []mongod.IndexModel{{Keys: keys}})
	if err != nil {
		return fmt.Errorf("mongoadapter: migrate indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}
