package handlers

import (
	"errors"
	"net/http"

	"tripscore/internal/models"
	"tripscore/internal/repositories/interfaces"
	"tripscore/internal/services"
	"tripscore/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PopularityHandler struct {
	popularityService services.PopularityService
	defaultListLimit  int64
	maxListLimit      int64
}

func NewPopularityHandler(popularityService services.PopularityService, defaultListLimit, maxListLimit int64) *PopularityHandler {
	if defaultListLimit <= 0 {
		defaultListLimit = utils.DefaultListLimit
	}
	if maxListLimit <= 0 {
		maxListLimit = utils.MaxListLimit
	}

	return &PopularityHandler{
		popularityService: popularityService,
		defaultListLimit:  defaultListLimit,
		maxListLimit:      maxListLimit,
	}
}

// UpdateAll recomputes the popularity score of every active trip.
// Heavy: intended for admins; the scheduler runs the same job periodically.
func (h *PopularityHandler) UpdateAll(c *gin.Context) {
	result, err := h.popularityService.ReconcileAll(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "POPULARITY_UPDATE_FAILED", "Failed to update popularity scores: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Popularity scores updated successfully", result)
}

// UpdateTrip recomputes the popularity score of a single trip.
func (h *PopularityHandler) UpdateTrip(c *gin.Context) {
	tripID, err := primitive.ObjectIDFromHex(c.Param("trip_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid trip ID")
		return
	}

	result, err := h.popularityService.RecomputeTripScore(c.Request.Context(), tripID)
	if err != nil {
		if errors.Is(err, interfaces.ErrTripNotFound) {
			utils.NotFoundResponse(c, "Trip")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "POPULARITY_UPDATE_FAILED", "Failed to update trip popularity: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Trip popularity updated successfully", result)
}

// UpdateRoute recomputes all active trips on one route.
func (h *PopularityHandler) UpdateRoute(c *gin.Context) {
	var request models.UpdateRouteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationErrors(err))
		return
	}

	result, err := h.popularityService.ReconcileRoute(c.Request.Context(), request.FromLocation, request.ToLocation)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "ROUTE_UPDATE_FAILED", "Failed to update route popularity: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Route popularity updated successfully", result)
}

// PopularTrips lists bookable trips ordered by popularity score.
func (h *PopularityHandler) PopularTrips(c *gin.Context) {
	limit := h.defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := parseLimit(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid limit")
			return
		}
		limit = parsed
	}
	if limit > h.maxListLimit {
		limit = h.maxListLimit
	}

	routeKey := c.Query("route")

	trips, err := h.popularityService.GetPopularTrips(c.Request.Context(), routeKey, limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "POPULAR_TRIPS_FAILED", "Failed to fetch popular trips: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Popular trips fetched successfully", gin.H{
		"count": len(trips),
		"trips": trips,
	})
}
