// Package mongodb adapts a MongoDB collection into an httpqueue.Cache,
// storing each entry as a single document whose payload is diskcache's
// on-disk byte encoding.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// Config holds the configuration for creating a MongoDB-backed Cache.
type Config struct {
	URI        string
	Database   string
	Collection string // defaults to "httpqueue"
	KeyPrefix  string // defaults to "cache:"
	Timeout    time.Duration

	ClientOptions *options.ClientOptions
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Collection: "httpqueue",
		KeyPrefix:  "cache:",
		Timeout:    5 * time.Second,
	}
}

type document struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Cache is an httpqueue.Cache implementation backed by a MongoDB
// collection.
type Cache struct {
	client     *mongo.Client
	collection *mongo.Collection
	keyPrefix  string
	timeout    time.Duration
}

// New connects to MongoDB using config and returns a Cache.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("mongodb: URI is required")
	}
	if config.Database == "" {
		return nil, fmt.Errorf("mongodb: database name is required")
	}
	def := DefaultConfig()
	if config.Collection == "" {
		config.Collection = def.Collection
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}

	clientOpts := options.Client().ApplyURI(config.URI)
	if config.ClientOptions != nil {
		clientOpts = config.ClientOptions.ApplyURI(config.URI)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}

	return &Cache{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
		keyPrefix:  config.KeyPrefix,
		timeout:    config.Timeout,
	}, nil
}

func (c *Cache) docKey(key string) string {
	return c.keyPrefix + key
}

func (c *Cache) Get(key string) (*httpqueue.CacheEntry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var doc document
	if err := c.collection.FindOne(ctx, bson.M{"_id": c.docKey(key)}).Decode(&doc); err != nil {
		return nil, false
	}

	entry, err := diskcache.DecodeEntry(key, doc.Data)
	if err != nil {
		_ = c.Remove(key)
		return nil, false
	}
	return entry, true
}

func (c *Cache) Put(key string, entry *httpqueue.CacheEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	doc := document{Key: c.docKey(key), Data: diskcache.EncodeEntry(key, entry), UpdatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := c.collection.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return fmt.Errorf("mongodb: replace: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(key string, fullExpire bool) error {
	entry, ok := c.Get(key)
	if !ok {
		return nil
	}
	entry.SoftTTL = 0
	if fullExpire {
		entry.TTL = 0
	}
	return c.Put(key, entry)
}

func (c *Cache) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if _, err := c.collection.DeleteOne(ctx, bson.M{"_id": c.docKey(key)}); err != nil {
		return fmt.Errorf("mongodb: delete: %w", err)
	}
	return nil
}

func (c *Cache) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if _, err := c.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$regex": "^" + c.keyPrefix}}); err != nil {
		return fmt.Errorf("mongodb: delete_many: %w", err)
	}
	return nil
}

// Close disconnects the MongoDB client.
func (c *Cache) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

var _ httpqueue.Cache = (*Cache)(nil)
