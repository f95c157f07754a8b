package handlers

import (
	"tripscore/internal/models"
	"tripscore/internal/services"
	"tripscore/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookHandler receives domain events from the booking/trip backend and
// hands them to the popularity service. Responses never wait on the
// recomputation: the service runs it detached and logs any failure.
type WebhookHandler struct {
	popularityService services.PopularityService
}

func NewWebhookHandler(popularityService services.PopularityService) *WebhookHandler {
	return &WebhookHandler{
		popularityService: popularityService,
	}
}

// BookingStatusChanged handles a booking status transition event.
func (h *WebhookHandler) BookingStatusChanged(c *gin.Context) {
	var event models.BookingStatusChangedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationErrors(err))
		return
	}

	tripID, err := primitive.ObjectIDFromHex(event.TripID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid trip ID")
		return
	}

	h.popularityService.OnBookingStatusChange(event.BookingID, models.BookingStatus(event.NewStatus), tripID)

	utils.SuccessResponse(c, "Booking status change processed", nil)
}

// TripCompleted handles a trip completion event.
func (h *WebhookHandler) TripCompleted(c *gin.Context) {
	var event models.TripCompletedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationErrors(err))
		return
	}

	tripID, err := primitive.ObjectIDFromHex(event.TripID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid trip ID")
		return
	}

	h.popularityService.OnTripCompleted(tripID)

	utils.SuccessResponse(c, "Trip completion processed", nil)
}
