package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/bson"

	"guruchat-backend/internal/models"
)

// The postgres store keeps the same identifiers as the document store:
// 24-char hex ObjectIDs in CHAR(24) columns. The persona-less conversation
// is stored under guru_id = ''.

const pgUniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

func mapPGError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func guruKey(guruID *bson.ObjectID) string {
	if guruID == nil {
		return ""
	}
	return guruID.Hex()
}

func parseGuruKey(s string) (*bson.ObjectID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// --- users ---

type PGUserRepo struct {
	pool *pgxpool.Pool
}

func NewPGUserRepo(pool *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{pool: pool}
}

func (r *PGUserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	user.ID = bson.NewObjectID()
	err := r.pool.QueryRow(ctx, query, user.ID.Hex(), user.Name, user.Email, user.PasswordHash).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PGUserRepo) GetByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	query := `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id.Hex()))
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user models.User
		id   string
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, mapPGError(err)
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", id, err)
	}
	user.ID = oid
	return &user, nil
}

// --- gurus ---

type PGGuruRepo struct {
	pool *pgxpool.Pool
}

func NewPGGuruRepo(pool *pgxpool.Pool) *PGGuruRepo {
	return &PGGuruRepo{pool: pool}
}

func (r *PGGuruRepo) List(ctx context.Context) ([]models.Guru, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, system_prompt, created_at, updated_at FROM gurus ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gurus: %w", err)
	}
	defer rows.Close()

	gurus := make([]models.Guru, 0)
	for rows.Next() {
		g, err := scanGuru(rows)
		if err != nil {
			return nil, err
		}
		gurus = append(gurus, *g)
	}
	return gurus, rows.Err()
}

func (r *PGGuruRepo) GetByID(ctx context.Context, id bson.ObjectID) (*models.Guru, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, system_prompt, created_at, updated_at FROM gurus WHERE id = $1`, id.Hex())
	return scanGuru(row)
}

func (r *PGGuruRepo) GetNames(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]string, error) {
	names := make(map[bson.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	hexIDs := make([]string, len(ids))
	for i, id := range ids {
		hexIDs[i] = id.Hex()
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM gurus WHERE id = ANY($1)`, hexIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up guru names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		names[oid] = name
	}
	return names, rows.Err()
}

func (r *PGGuruRepo) ReplaceAll(ctx context.Context, gurus []models.Guru) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM gurus`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear gurus: %w", err)
	}

	for i := range gurus {
		gurus[i].ID = bson.NewObjectID()
		err := tx.QueryRow(ctx, `
			INSERT INTO gurus (id, name, description, system_prompt)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at`,
			gurus[i].ID.Hex(), gurus[i].Name, gurus[i].Description, gurus[i].SystemPrompt,
		).Scan(&gurus[i].CreatedAt, &gurus[i].UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert guru %q: %w", gurus[i].Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanGuru(row rowScanner) (*models.Guru, error) {
	var (
		g  models.Guru
		id string
	)
	if err := row.Scan(&id, &g.Name, &g.Description, &g.SystemPrompt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, mapPGError(err)
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt guru id %q: %w", id, err)
	}
	g.ID = oid
	return &g, nil
}

// --- chats ---

type PGChatRepo struct {
	pool *pgxpool.Pool
}

func NewPGChatRepo(pool *pgxpool.Pool) *PGChatRepo {
	return &PGChatRepo{pool: pool}
}

const chatColumns = `id, user_id, guru_id, messages, created_at, updated_at`

func (r *PGChatRepo) AppendTurns(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID, turns []models.Message) (*models.Chat, error) {
	payload, err := json.Marshal(turns)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO chats (id, user_id, guru_id, messages)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (user_id, guru_id) DO UPDATE
		SET messages = chats.messages || EXCLUDED.messages, updated_at = NOW()
		RETURNING ` + chatColumns

	row := r.pool.QueryRow(ctx, query, bson.NewObjectID().Hex(), userID.Hex(), guruKey(guruID), string(payload))
	chat, err := scanChat(row)
	if err != nil {
		return nil, fmt.Errorf("failed to append chat turns: %w", err)
	}
	return chat, nil
}

func (r *PGChatRepo) ListByUser(ctx context.Context, userID bson.ObjectID) ([]models.Chat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE user_id = $1 ORDER BY updated_at DESC`, userID.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

func (r *PGChatRepo) GetByID(ctx context.Context, userID, chatID bson.ObjectID) (*models.Chat, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id = $1 AND user_id = $2`, chatID.Hex(), userID.Hex())
	return scanChat(row)
}

func (r *PGChatRepo) GetByGuru(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID) (*models.Chat, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE user_id = $1 AND guru_id = $2`, userID.Hex(), guruKey(guruID))
	return scanChat(row)
}

func scanChat(row rowScanner) (*models.Chat, error) {
	var (
		c            models.Chat
		id, uid, gid string
		messagesRaw  []byte
	)
	if err := row.Scan(&id, &uid, &gid, &messagesRaw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapPGError(err)
	}

	var err error
	if c.ID, err = bson.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("corrupt chat id %q: %w", id, err)
	}
	if c.UserID, err = bson.ObjectIDFromHex(uid); err != nil {
		return nil, fmt.Errorf("corrupt chat user id %q: %w", uid, err)
	}
	if c.GuruID, err = parseGuruKey(gid); err != nil {
		return nil, fmt.Errorf("corrupt chat guru id %q: %w", gid, err)
	}
	if err := json.Unmarshal(messagesRaw, &c.Messages); err != nil {
		return nil, fmt.Errorf("corrupt chat messages: %w", err)
	}
	return &c, nil
}
