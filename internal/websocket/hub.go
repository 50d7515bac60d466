package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/models"
)

const writeWait = 10 * time.Second

// UserChannel is the pub/sub channel carrying one user's live updates.
func UserChannel(userID bson.ObjectID) string {
	return "user_updates:" + userID.Hex()
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans a user's pub/sub channel out to all of that user's open sockets.
// One subscription exists per connected user, on any instance they reach.
type Hub struct {
	mu          sync.RWMutex
	connections map[bson.ObjectID][]*client
	cancelFuncs map[bson.ObjectID]context.CancelFunc

	redisClient *redis.Client
	auth        *middleware.JWTAuth
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewHub(redisClient *redis.Client, auth *middleware.JWTAuth, allowedOrigin string, log *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[bson.ObjectID][]*client),
		cancelFuncs: make(map[bson.ObjectID]context.CancelFunc),
		redisClient: redisClient,
		auth:        auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		log: log,
	}
}

// originChecker accepts same-host requests and the configured frontend origin.
func originChecker(allowedOrigin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == allowedOrigin {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.redisClient == nil {
		http.Error(w, "Live updates are not available", http.StatusServiceUnavailable)
		return
	}

	session, err := h.auth.SessionFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.registerConnection(session.UserID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(session.UserID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(userID bson.ObjectID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)

	// Start pub/sub subscription if this is the first connection for this user
	if len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribeToPubSub(ctx, userID)
	}

	h.log.Debug("websocket connected", zap.String("user_id", userID.Hex()), zap.Int("connections", len(h.connections[userID])))
}

func (h *Hub) unregisterConnection(userID bson.ObjectID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	h.log.Debug("websocket disconnected", zap.String("user_id", userID.Hex()))
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID bson.ObjectID) {
	pubsub := h.redisClient.Subscribe(ctx, UserChannel(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID bson.ObjectID, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", zap.String("user_id", userID.Hex()), zap.Error(err))
		}
	}
}

// ConnectionCount reports how many sockets a user has open on this instance.
func (h *Hub) ConnectionCount(userID bson.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close drops every connection and subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.connections {
		for _, c := range conns {
			c.conn.Close()
		}
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
		}
	}
	h.connections = make(map[bson.ObjectID][]*client)
	h.cancelFuncs = make(map[bson.ObjectID]context.CancelFunc)
}

// Publisher sends live updates to whichever instance holds the user's sockets.
type Publisher struct {
	redisClient *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redisClient: redisClient}
}

func (p *Publisher) PublishConversationUpdate(ctx context.Context, userID bson.ObjectID, update models.ConversationUpdate) error {
	data, err := json.Marshal(models.WSMessage{Type: models.WSConversationUpdated, Payload: update})
	if err != nil {
		return err
	}
	if err := p.redisClient.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}
	return nil
}
