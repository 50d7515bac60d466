package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"guruchat-backend/internal/cache"
	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/repository"
	"guruchat-backend/internal/services"
	"guruchat-backend/internal/worker"
)

type memStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	gurus   map[bson.ObjectID]*models.Guru
	chats   []*models.Chat
	appends int
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*models.User),
		gurus: make(map[bson.ObjectID]*models.Guru),
	}
}

type memUsers struct{ s *memStore }

func (u memUsers) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.Email]; ok {
		return repository.ErrDuplicate
	}
	user.ID = bson.NewObjectID()
	u.s.users[user.Email] = user
	return nil
}

func (u memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if user, ok := u.s.users[email]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

type memGurus struct{ s *memStore }

func (g memGurus) List(context.Context) ([]models.Guru, error) {
	out := make([]models.Guru, 0, len(g.s.gurus))
	for _, guru := range g.s.gurus {
		out = append(out, *guru)
	}
	return out, nil
}

func (g memGurus) GetByID(_ context.Context, id bson.ObjectID) (*models.Guru, error) {
	if guru, ok := g.s.gurus[id]; ok {
		return guru, nil
	}
	return nil, repository.ErrNotFound
}

func (g memGurus) GetNames(_ context.Context, ids []bson.ObjectID) (map[bson.ObjectID]string, error) {
	names := make(map[bson.ObjectID]string)
	for _, id := range ids {
		if guru, ok := g.s.gurus[id]; ok {
			names[id] = guru.Name
		}
	}
	return names, nil
}

type memChats struct{ s *memStore }

func sameGuru(a, b *bson.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (c memChats) AppendTurns(_ context.Context, userID bson.ObjectID, guruID *bson.ObjectID, turns []models.Message) (*models.Chat, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.appends++
	for _, chat := range c.s.chats {
		if chat.UserID == userID && sameGuru(chat.GuruID, guruID) {
			chat.Messages = append(chat.Messages, turns...)
			chat.UpdatedAt = time.Now()
			return chat, nil
		}
	}
	chat := &models.Chat{ID: bson.NewObjectID(), UserID: userID, GuruID: guruID, Messages: turns,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	c.s.chats = append(c.s.chats, chat)
	return chat, nil
}

func (c memChats) ListByUser(_ context.Context, userID bson.ObjectID) ([]models.Chat, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []models.Chat
	for i := len(c.s.chats) - 1; i >= 0; i-- {
		if c.s.chats[i].UserID == userID {
			out = append(out, *c.s.chats[i])
		}
	}
	return out, nil
}

func (c memChats) GetByID(_ context.Context, userID, chatID bson.ObjectID) (*models.Chat, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, chat := range c.s.chats {
		if chat.ID == chatID && chat.UserID == userID {
			return chat, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (c memChats) GetByGuru(_ context.Context, userID bson.ObjectID, guruID *bson.ObjectID) (*models.Chat, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, chat := range c.s.chats {
		if chat.UserID == userID && sameGuru(chat.GuruID, guruID) {
			return chat, nil
		}
	}
	return nil, repository.ErrNotFound
}

// inlinePool runs persistence jobs synchronously.
type inlinePool struct{}

func (inlinePool) Submit(job worker.Job) bool {
	job.Run(context.Background())
	return true
}

type scriptedGenerator struct {
	mu     sync.Mutex
	chunks []string
	err    error
	calls  int
}

func (g *scriptedGenerator) StreamChat(ctx context.Context, _ string, _ []models.Message, emit func(string) error) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	var reply strings.Builder
	for _, c := range g.chunks {
		reply.WriteString(c)
		if err := emit(c); err != nil {
			return reply.String(), err
		}
	}
	return reply.String(), g.err
}

type testEnv struct {
	store  *memStore
	auth   *middleware.JWTAuth
	gen    *scriptedGenerator
	router http.Handler
}

// newTestEnv mounts the handlers behind session middleware. A nil generator
// leaves the chat service unconfigured.
func newTestEnv(t *testing.T, gen *scriptedGenerator) *testEnv {
	t.Helper()
	log := zap.NewNop()
	store := newMemStore()
	jwtAuth := middleware.NewJWTAuth("test-secret", time.Hour, false, cache.NewMemoryDenylist(), log)

	gurus := services.NewGuruService(memGurus{store}, nil, nil, log)
	chatCfg := services.ChatServiceConfig{
		Gurus: gurus,
		Chats: memChats{store},
		Pool:  inlinePool{},
		Log:   log,
	}
	if gen != nil {
		chatCfg.Generator = gen
	}

	authH := NewAuthHandler(services.NewAuthService(memUsers{store}, jwtAuth, bcrypt.MinCost, log), jwtAuth, log)
	guruH := NewGuruHandler(gurus, log)
	chatH := NewChatHandler(services.NewChatService(chatCfg), log)
	historyH := NewHistoryHandler(services.NewHistoryService(memChats{store}, memGurus{store}), log)

	r := chi.NewRouter()
	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)
	r.Group(func(r chi.Router) {
		r.Use(jwtAuth.Middleware)
		r.Post("/api/auth/logout", authH.Logout)
		r.Get("/api/gurus", guruH.List)
		r.Get("/api/gurus/{id}", guruH.Get)
		r.Post("/api/chat", chatH.Chat)
		r.Get("/api/chats", historyH.Get)
	})

	return &testEnv{store: store, auth: jwtAuth, gen: gen, router: r}
}

func (e *testEnv) addGuru(name, prompt string) models.Guru {
	g := models.Guru{ID: bson.NewObjectID(), Name: name, SystemPrompt: prompt}
	e.store.gurus[g.ID] = &g
	return g
}

// session returns a cookie for a fresh user id.
func (e *testEnv) session(t *testing.T) (bson.ObjectID, *http.Cookie) {
	t.Helper()
	userID := bson.NewObjectID()
	token, _, err := e.auth.GenerateSessionToken(userID)
	require.NoError(t, err)
	return userID, &http.Cookie{Name: middleware.SessionCookieName, Value: token}
}

func (e *testEnv) do(method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}
