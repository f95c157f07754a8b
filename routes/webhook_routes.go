package routes

import (
	"tripscore/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupWebhookRoutes sets up the event-driven update endpoints. These are
// called by the booking/trip backend, not by end users.
func SetupWebhookRoutes(r *gin.RouterGroup, webhookHandler *handlers.WebhookHandler) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/booking-status-changed", webhookHandler.BookingStatusChanged)
		webhooks.POST("/trip-completed", webhookHandler.TripCompleted)
	}
}
