package worker

import (
	"github.com/spec-kit/marketplace-service/internal/service"
)

// StartNotificationWorker subscribes the notification service to domain
// events so tickets, orders and follows produce notifications.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
