package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"guruchat-backend/internal/config"
	"guruchat-backend/internal/database"
	"guruchat-backend/internal/models"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
}

type GuruStore interface {
	List(ctx context.Context) ([]models.Guru, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*models.Guru, error)
	GetNames(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]string, error)
	ReplaceAll(ctx context.Context, gurus []models.Guru) (int64, error)
}

type ChatStore interface {
	AppendTurns(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID, turns []models.Message) (*models.Chat, error)
	ListByUser(ctx context.Context, userID bson.ObjectID) ([]models.Chat, error)
	GetByID(ctx context.Context, userID, chatID bson.ObjectID) (*models.Chat, error)
	GetByGuru(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID) (*models.Chat, error)
}

// Store bundles the repositories of one driver.
type Store struct {
	Driver string
	Users  UserStore
	Gurus  GuruStore
	Chats  ChatStore

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

func (s *Store) Close(ctx context.Context) error { return s.close(ctx) }

// Open connects the driver selected by STORE_DRIVER. The Mongo driver
// connects lazily on first use; Postgres connects and migrates up front.
func Open(cfg *config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		db := database.NewMongo(cfg.MongoURI, cfg.MongoDatabase, log)
		return &Store{
			Driver: cfg.StoreDriver,
			Users:  NewUserRepo(db),
			Gurus:  NewGuruRepo(db),
			Chats:  NewChatRepo(db),
			ping:   db.Ping,
			close:  db.Close,
		}, nil

	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(pool, database.Migrations(), log); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Driver: cfg.StoreDriver,
			Users:  NewPGUserRepo(pool),
			Gurus:  NewPGGuruRepo(pool),
			Chats:  NewPGChatRepo(pool),
			ping:   pool.Ping,
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
