package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	UsersCollection = "users"
	GurusCollection = "gurus"
	ChatsCollection = "chats"
)

// Mongo holds process-wide connection state. The client is created on first
// use and reused afterwards; concurrent first callers share one attempt, and a
// failed attempt leaves nothing cached so the next call retries.
type Mongo struct {
	uri            string
	dbName         string
	connectTimeout time.Duration
	log            *zap.Logger

	mu     sync.RWMutex
	client *mongo.Client
	group  singleflight.Group
}

func NewMongo(uri, dbName string, log *zap.Logger) *Mongo {
	return &Mongo{
		uri:            uri,
		dbName:         dbName,
		connectTimeout: 10 * time.Second,
		log:            log,
	}
}

// Database returns the application database, connecting if needed.
func (m *Mongo) Database(ctx context.Context) (*mongo.Database, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(m.dbName), nil
}

// Collection is a shorthand for Database(ctx).Collection(name).
func (m *Mongo) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := m.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

func (m *Mongo) connect(ctx context.Context) (*mongo.Client, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	ch := m.group.DoChan("connect", func() (interface{}, error) {
		m.mu.RLock()
		existing := m.client
		m.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		m.log.Info("creating new database connection")
		connectCtx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
		defer cancel()

		c, err := mongo.Connect(options.Client().ApplyURI(m.uri))
		if err != nil {
			m.log.Error("database connection error", zap.Error(err))
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := c.Ping(connectCtx, nil); err != nil {
			c.Disconnect(context.Background())
			m.log.Error("database ping error", zap.Error(err))
			return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		if err := ensureIndexes(connectCtx, c.Database(m.dbName)); err != nil {
			c.Disconnect(context.Background())
			return nil, err
		}

		m.mu.Lock()
		m.client = c
		m.mu.Unlock()
		m.log.Info("database connection successful")
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*mongo.Client), nil
	}
}

// Ping checks (and if necessary establishes) the connection.
func (m *Mongo) Ping(ctx context.Context) error {
	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = db.Collection(ChatsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "guru_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create chats indexes: %w", err)
	}
	return nil
}
