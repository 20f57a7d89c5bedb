package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/realtime"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// MaxMessageLength bounds direct message content in characters.
const MaxMessageLength = 2000

// MessageService delivers direct messages between users.
type MessageService struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	social   repository.SocialRepository
	notifier *NotificationService
	emitter  Emitter
	logger   *zap.Logger
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	UserRepo    repository.UserRepository
	MessageRepo repository.MessageRepository
	SocialRepo  repository.SocialRepository
	Notifier    *NotificationService
	Emitter     Emitter
	Logger      *zap.Logger
}

// NewMessageService creates the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	return &MessageService{
		users:    deps.UserRepo,
		messages: deps.MessageRepo,
		social:   deps.SocialRepo,
		notifier: deps.Notifier,
		emitter:  deps.Emitter,
		logger:   orNop(deps.Logger),
	}
}

// SendMessage stores a message, then a notification for the receiver, then
// pushes receive_message to both participants and the notification to the
// receiver. The notification is a separate write: if it fails the message
// still stands and the failure is logged.
func (s *MessageService) SendMessage(ctx context.Context, sender *domain.User, receiverID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("message content is required", map[string]any{"field": "content"})
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, apperrors.NewValidationError("message is too long", map[string]any{"field": "content", "max": MaxMessageLength})
	}
	if receiverID == sender.ID {
		return nil, apperrors.NewValidationError("cannot message yourself", nil)
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, lookupError(err, "user", map[string]any{"user_id": receiverID})
	}
	if receiver.Disabled {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": receiverID})
	}
	blocked, err := s.social.IsBlockedEither(ctx, sender.ID, receiver.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if blocked {
		return nil, apperrors.NewForbidden("messaging is blocked between these users")
	}

	msg := &domain.Message{SenderID: sender.ID, ReceiverID: receiver.ID, Content: content}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.notifier != nil {
		link := "/messages/" + sender.ID
		if _, err := s.notifier.Notify(ctx, receiver.ID, domain.NotificationMessage,
			"New message from "+sender.Username, &link); err != nil {
			s.logger.Error("message notification failed",
				zap.String("message_id", msg.ID),
				zap.String("receiver_id", receiver.ID),
				zap.Error(err))
		}
	}

	s.emit(ctx, sender.ID, msg)
	s.emit(ctx, receiver.ID, msg)
	return msg, nil
}

func (s *MessageService) emit(ctx context.Context, userID string, msg *domain.Message) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitToUser(ctx, userID, realtime.EventReceiveMessage, realtime.NewMessagePayload(msg)); err != nil {
		s.logger.Warn("message push failed", zap.String("user_id", userID), zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// Conversation returns a page of the thread between user and otherID.
func (s *MessageService) Conversation(ctx context.Context, user *domain.User, otherID string, limit, offset int) ([]domain.Message, error) {
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		return nil, lookupError(err, "user", map[string]any{"user_id": otherID})
	}
	msgs, err := s.messages.ListConversation(ctx, user.ID, otherID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// Conversations lists the caller's threads by most recent message.
func (s *MessageService) Conversations(ctx context.Context, user *domain.User) ([]domain.Conversation, error) {
	convs, err := s.messages.ListConversations(ctx, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return convs, nil
}
