package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"guruchat-backend/internal/models"
	"guruchat-backend/internal/repository"
	"guruchat-backend/internal/worker"
)

type fakeUserRepo struct {
	mu          sync.Mutex
	byEmail     map[string]*models.User
	createErr   error
	createCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	user.ID = bson.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byEmail[user.Email] = user
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

type fakeGuruRepo struct {
	gurus     map[bson.ObjectID]*models.Guru
	getErr    error
	listCalls int
}

func newFakeGuruRepo(gurus ...models.Guru) *fakeGuruRepo {
	r := &fakeGuruRepo{gurus: make(map[bson.ObjectID]*models.Guru)}
	for i := range gurus {
		g := gurus[i]
		r.gurus[g.ID] = &g
	}
	return r
}

func (r *fakeGuruRepo) List(context.Context) ([]models.Guru, error) {
	r.listCalls++
	out := make([]models.Guru, 0, len(r.gurus))
	for _, g := range r.gurus {
		out = append(out, *g)
	}
	return out, nil
}

func (r *fakeGuruRepo) GetByID(_ context.Context, id bson.ObjectID) (*models.Guru, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if g, ok := r.gurus[id]; ok {
		return g, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeGuruRepo) GetNames(_ context.Context, ids []bson.ObjectID) (map[bson.ObjectID]string, error) {
	names := make(map[bson.ObjectID]string)
	for _, id := range ids {
		if g, ok := r.gurus[id]; ok {
			names[id] = g.Name
		}
	}
	return names, nil
}

type appendCall struct {
	userID bson.ObjectID
	guruID *bson.ObjectID
	turns  []models.Message
}

type fakeChatRepo struct {
	mu        sync.Mutex
	chats     []models.Chat
	appends   []appendCall
	appendErr error
}

func (r *fakeChatRepo) AppendTurns(_ context.Context, userID bson.ObjectID, guruID *bson.ObjectID, turns []models.Message) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appends = append(r.appends, appendCall{userID: userID, guruID: guruID, turns: turns})
	if r.appendErr != nil {
		return nil, r.appendErr
	}
	return &models.Chat{ID: bson.NewObjectID(), UserID: userID, GuruID: guruID, Messages: turns}, nil
}

func (r *fakeChatRepo) ListByUser(_ context.Context, userID bson.ObjectID) ([]models.Chat, error) {
	var out []models.Chat
	for _, c := range r.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) GetByID(_ context.Context, userID, chatID bson.ObjectID) (*models.Chat, error) {
	for i := range r.chats {
		if r.chats[i].ID == chatID && r.chats[i].UserID == userID {
			return &r.chats[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeChatRepo) GetByGuru(_ context.Context, userID bson.ObjectID, guruID *bson.ObjectID) (*models.Chat, error) {
	for i := range r.chats {
		c := &r.chats[i]
		if c.UserID != userID {
			continue
		}
		if (c.GuruID == nil && guruID == nil) || (c.GuruID != nil && guruID != nil && *c.GuruID == *guruID) {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memoryGuruCache struct {
	gurus []models.Guru
	set   bool
}

func (c *memoryGuruCache) GetGurus(context.Context) ([]models.Guru, bool) { return c.gurus, c.set }
func (c *memoryGuruCache) SetGurus(_ context.Context, gurus []models.Guru) {
	c.gurus, c.set = gurus, true
}
func (c *memoryGuruCache) Invalidate(context.Context) error {
	c.gurus, c.set = nil, false
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeRecorder() *fakeRecorder { return &fakeRecorder{counts: make(map[string]int)} }

func (f *fakeRecorder) inc(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
}

func (f *fakeRecorder) get(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *fakeRecorder) CacheHit(name string)      { f.inc("hit:" + name) }
func (f *fakeRecorder) CacheMiss(name string)     { f.inc("miss:" + name) }
func (f *fakeRecorder) ChatStream(outcome string) { f.inc("stream:" + outcome) }
func (f *fakeRecorder) Persisted(outcome string)  { f.inc("persist:" + outcome) }

type fakeGenerator struct {
	chunks     []string
	err        error
	calls      int
	lastPrompt string
}

func (g *fakeGenerator) StreamChat(ctx context.Context, systemPrompt string, _ []models.Message, emit func(string) error) (string, error) {
	g.calls++
	g.lastPrompt = systemPrompt
	var reply strings.Builder
	for _, c := range g.chunks {
		if err := ctx.Err(); err != nil {
			return reply.String(), err
		}
		reply.WriteString(c)
		if err := emit(c); err != nil {
			return reply.String(), err
		}
	}
	return reply.String(), g.err
}

// syncPool runs jobs inline so tests can assert on their effects.
type syncPool struct {
	reject bool
	jobs   []string
	errs   []error
}

func (p *syncPool) Submit(job worker.Job) bool {
	if p.reject {
		return false
	}
	p.jobs = append(p.jobs, job.Name)
	p.errs = append(p.errs, job.Run(context.Background()))
	return true
}

type fakePublisher struct {
	updates []models.ConversationUpdate
}

func (p *fakePublisher) PublishConversationUpdate(_ context.Context, _ bson.ObjectID, update models.ConversationUpdate) error {
	p.updates = append(p.updates, update)
	return nil
}
