package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/realtime"
	"github.com/spec-kit/marketplace-service/internal/repository"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// Emitter pushes a socket frame to every session of one user.
type Emitter interface {
	EmitToUser(ctx context.Context, userID, event string, data any) error
}

// NotificationService stores notifications and pushes them to connected users.
type NotificationService struct {
	notifications repository.NotificationRepository
	dispatcher    events.Dispatcher
	emitter       Emitter
	webhook       *WebhookNotifier
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Dispatcher       events.Dispatcher
	Emitter          Emitter
	Webhook          *WebhookNotifier
	Logger           *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		dispatcher:    deps.Dispatcher,
		emitter:       deps.Emitter,
		webhook:       deps.Webhook,
		logger:        orNop(deps.Logger),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketCommented, n.handleTicketCommented)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventOrderPlaced, n.handleOrderPlaced)
	n.dispatcher.Subscribe(events.EventOrderStatusChanged, n.handleOrderStatusChanged)
	n.dispatcher.Subscribe(events.EventUserFollowed, n.handleUserFollowed)
}

// Notify stores a notification for userID and pushes it to their room.
func (n *NotificationService) Notify(ctx context.Context, userID string, kind domain.NotificationType, content string, link *string) (*domain.Notification, error) {
	notification := &domain.Notification{
		UserID:  userID,
		Type:    kind,
		Content: content,
		Link:    link,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return nil, err
	}
	n.push(ctx, notification)
	return notification, nil
}

func (n *NotificationService) push(ctx context.Context, notification *domain.Notification) {
	if n.emitter == nil {
		return
	}
	if err := n.emitter.EmitToUser(ctx, notification.UserID, realtime.EventNotification, realtime.NewNotificationPayload(notification)); err != nil {
		n.logger.Warn("notification push failed",
			zap.String("user_id", notification.UserID),
			zap.String("notification_id", notification.ID),
			zap.Error(err))
	}
}

// List returns the caller's notifications newest first.
func (n *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	list, err := n.notifications.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// UnreadCount counts the caller's unread notifications.
func (n *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := n.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead marks one notification read. Repeating it is a no-op; another
// user's notification is reported as missing.
func (n *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := n.notifications.MarkRead(ctx, userID, id); err != nil {
		return lookupError(err, "notification", map[string]any{"notification_id": id})
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller read.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	changed, err := n.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return changed, nil
}

// Delete removes one of the caller's notifications.
func (n *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := n.notifications.Delete(ctx, userID, id); err != nil {
		return lookupError(err, "notification", map[string]any{"notification_id": id})
	}
	return nil
}

func (n *NotificationService) notify(ctx context.Context, event events.Event, userID string, kind domain.NotificationType, content, link string) error {
	if userID == "" || userID == event.ActorID {
		return nil
	}
	_, err := n.Notify(ctx, userID, kind, content, &link)
	return err
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.SubjectID))
	n.sendWebhook(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.sendWebhook(ctx, event)
	return n.notify(ctx, event, payload.CreatedBy, domain.NotificationTicketUpdate,
		fmt.Sprintf("Your ticket %q was assigned to a support agent", stringPreview(payload.Subject, 80)),
		ticketLink(event.SubjectID))
}

// handleTicketCommented tells the other side of the conversation: the
// assignee when the creator writes, the creator otherwise.
func (n *NotificationService) handleTicketCommented(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.sendWebhook(ctx, event)
	recipient := payload.CreatedBy
	if event.ActorID == payload.CreatedBy {
		if payload.AssignedTo == nil {
			return nil
		}
		recipient = *payload.AssignedTo
	}
	return n.notify(ctx, event, recipient, domain.NotificationTicketComment,
		fmt.Sprintf("New reply on ticket %q: %s", stringPreview(payload.Subject, 80), payload.Preview),
		ticketLink(event.SubjectID))
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.sendWebhook(ctx, event)
	return n.notify(ctx, event, payload.CreatedBy, domain.NotificationTicketUpdate,
		fmt.Sprintf("Ticket %q is now %s", stringPreview(payload.Subject, 80), payload.NewStatus),
		ticketLink(event.SubjectID))
}

func (n *NotificationService) handleOrderPlaced(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OrderPlacedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return n.notify(ctx, event, payload.SellerID, domain.NotificationOrder,
		fmt.Sprintf("New order with %d item(s) totalling %s", payload.ItemCount, formatCents(payload.TotalCents)),
		orderLink(event.SubjectID))
}

// handleOrderStatusChanged notifies the buyer, or the seller when the buyer
// cancelled.
func (n *NotificationService) handleOrderStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OrderStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	recipient := payload.BuyerID
	if event.ActorID == payload.BuyerID {
		recipient = payload.SellerID
	}
	return n.notify(ctx, event, recipient, domain.NotificationOrder,
		fmt.Sprintf("Order is now %s", payload.NewStatus),
		orderLink(event.SubjectID))
}

func (n *NotificationService) handleUserFollowed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserFollowedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return n.notify(ctx, event, payload.FolloweeID, domain.NotificationFollow,
		fmt.Sprintf("%s started following you", payload.FollowerUsername),
		"/profile/"+payload.FollowerUsername)
}

// sendWebhook delivers asynchronously; failures are only logged.
func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) {
	if n.webhook == nil {
		return
	}
	go func() {
		if err := n.webhook.Send(context.WithoutCancel(ctx), event); err != nil {
			n.logger.Warn("webhook delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}()
}

func ticketLink(id string) string { return "/support/" + id }

func orderLink(id string) string { return "/orders/" + id }

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
