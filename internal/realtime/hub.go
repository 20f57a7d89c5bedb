package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/olahol/melody"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/observability"
	"github.com/spec-kit/marketplace-service/internal/persistence"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// RelayChannel is the Redis pub/sub channel shared by every API instance.
const RelayChannel = "realtime:events"

const (
	keyUser   = "user"
	keyUserID = "user_id"

	maxFrameBytes = 16 << 10
	sendTimeout   = 10 * time.Second
)

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.User, error)
}

// MessageSender delivers a direct message on behalf of sender.
type MessageSender interface {
	SendMessage(ctx context.Context, sender *domain.User, receiverID, content string) (*domain.Message, error)
}

// HubDependencies bundles collaborators for the socket hub.
type HubDependencies struct {
	Auth    Authenticator
	Redis   *persistence.Redis
	Metrics *observability.Metrics
	Logger  *zap.Logger
	// Origins lists accepted browser origins; empty accepts any.
	Origins []string
}

// Hub owns every socket session of this instance. Each session sits in the
// room of its authenticated user.
type Hub struct {
	melody  *melody.Melody
	auth    Authenticator
	redis   *persistence.Redis
	metrics *observability.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	sender MessageSender
}

type relayEnvelope struct {
	UserID string          `json:"user_id"`
	Frame  json.RawMessage `json:"frame"`
}

// NewHub builds the hub and registers its melody handlers.
func NewHub(deps HubDependencies) *Hub {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := melody.New()
	m.Config.MaxMessageSize = maxFrameBytes
	m.Upgrader.CheckOrigin = originChecker(deps.Origins)

	h := &Hub{
		melody:  m,
		auth:    deps.Auth,
		redis:   deps.Redis,
		metrics: deps.Metrics,
		logger:  logger,
	}
	m.HandleConnect(h.handleConnect)
	m.HandleDisconnect(h.handleDisconnect)
	m.HandleMessage(h.handleMessage)
	m.HandleError(func(s *melody.Session, err error) {
		h.logger.Debug("socket error", zap.String("user_id", sessionUserID(s)), zap.Error(err))
	})
	return h
}

// UseMessageSender sets the handler for send_message frames. The message
// service needs the hub as its emitter, so it is attached after construction.
func (h *Hub) UseMessageSender(sender MessageSender) {
	h.mu.Lock()
	h.sender = sender
	h.mu.Unlock()
}

func (h *Hub) messageSender() MessageSender {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sender
}

// ServeHTTP authenticates the handshake and upgrades the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := handshakeToken(r)
	if token == "" {
		writeHTTPError(w, apperrors.NewUnauthorized("missing credentials"))
		return
	}
	user, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	keys := map[string]any{keyUser: user, keyUserID: user.ID}
	if err := h.melody.HandleRequestWithKeys(w, r, keys); err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Server returns an HTTP server exposing the hub at path on addr.
func (h *Hub) Server(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	return &http.Server{Addr: addr, Handler: mux}
}

// Run relays frames published by other instances to local sessions until ctx
// is cancelled. Without Redis it returns immediately.
func (h *Hub) Run(ctx context.Context) {
	if !h.redis.Available() {
		h.logger.Info("redis unavailable; socket rooms are local to this instance")
		return
	}
	sub := h.redis.Client.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("dropping malformed relay frame", zap.Error(err))
				continue
			}
			_ = h.deliver(env.UserID, env.Frame)
		}
	}
}

// EmitToUser sends event to every session in userID's room, across instances
// when Redis is reachable.
func (h *Hub) EmitToUser(ctx context.Context, userID, event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	if h.redis.Available() {
		payload, err := json.Marshal(relayEnvelope{UserID: userID, Frame: frame})
		if err != nil {
			return err
		}
		err = h.redis.Client.Publish(ctx, RelayChannel, payload).Err()
		if err == nil {
			return nil
		}
		h.logger.Warn("relay publish failed; delivering locally", zap.String("user_id", userID), zap.Error(err))
	}
	return h.deliver(userID, frame)
}

// Sessions reports how many sockets are open on this instance.
func (h *Hub) Sessions() int {
	return h.melody.Len()
}

// Close disconnects every session.
func (h *Hub) Close() error {
	return h.melody.Close()
}

func (h *Hub) deliver(userID string, frame []byte) error {
	err := h.melody.BroadcastFilter(frame, func(s *melody.Session) bool {
		return sessionUserID(s) == userID
	})
	if errors.Is(err, melody.ErrClosed) {
		return nil
	}
	return err
}

func (h *Hub) handleConnect(s *melody.Session) {
	userID := sessionUserID(s)
	h.logger.Debug("socket connected", zap.String("user_id", userID))
	h.write(s, EventConnected, JoinRequest{UserID: userID})
}

func (h *Hub) handleDisconnect(s *melody.Session) {
	h.logger.Debug("socket disconnected", zap.String("user_id", sessionUserID(s)))
}

func (h *Hub) handleMessage(s *melody.Session, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.writeError(s, apperrors.NewValidationError("malformed frame", nil))
		return
	}
	h.metrics.RecordSocketEvent(frame.Event)

	switch frame.Event {
	case EventJoin:
		h.handleJoin(s, frame.Data)
	case EventSendMessage:
		h.handleSendMessage(s, frame.Data)
	default:
		h.writeError(s, apperrors.NewValidationError("unknown event", map[string]any{"event": frame.Event}))
	}
}

// handleJoin re-confirms membership of the caller's own room; rooms of other
// users cannot be joined.
func (h *Hub) handleJoin(s *melody.Session, data json.RawMessage) {
	userID := sessionUserID(s)
	var req JoinRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			h.writeError(s, apperrors.NewValidationError("malformed join", nil))
			return
		}
	}
	if req.UserID != "" && req.UserID != userID {
		h.writeError(s, apperrors.NewForbidden("cannot join another user's room"))
		return
	}
	h.write(s, EventConnected, JoinRequest{UserID: userID})
}

func (h *Hub) handleSendMessage(s *melody.Session, data json.RawMessage) {
	sender := h.messageSender()
	user, ok := sessionUser(s)
	if sender == nil || !ok {
		h.writeError(s, apperrors.NewInternalError(errors.New("messaging unavailable")))
		return
	}
	var req SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.writeError(s, apperrors.NewValidationError("malformed send_message", nil))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if _, err := sender.SendMessage(ctx, user, strings.TrimSpace(req.ReceiverID), req.Content); err != nil {
		h.writeError(s, err)
	}
}

func (h *Hub) write(s *melody.Session, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	if err := s.Write(frame); err != nil {
		h.logger.Debug("socket write failed", zap.String("user_id", sessionUserID(s)), zap.Error(err))
	}
}

func (h *Hub) writeError(s *melody.Session, err error) {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error("socket request failed", zap.String("user_id", sessionUserID(s)), zap.Error(domainErr))
	}
	h.write(s, EventError, ErrorPayload{Code: domainErr.Code, Message: domainErr.Message})
}

func sessionUserID(s *melody.Session) string {
	if v, ok := s.Get(keyUserID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func sessionUser(s *melody.Session) (*domain.User, bool) {
	v, ok := s.Get(keyUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

func handshakeToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		_, ok := allowed[strings.TrimRight(origin, "/")]
		return ok
	}
}

func writeHTTPError(w http.ResponseWriter, err error) {
	domainErr := apperrors.ToDomainError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(domainErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": domainErr.Code, "message": domainErr.Message})
}
