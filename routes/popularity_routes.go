package routes

import (
	"tripscore/internal/handlers"
	"tripscore/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPopularityRoutes sets up routes for popularity score management
func SetupPopularityRoutes(r *gin.RouterGroup, popularityHandler *handlers.PopularityHandler, jwtSecret string) {
	popularity := r.Group("/popularity")
	{
		// Public listing
		popularity.GET("/popular-trips", popularityHandler.PopularTrips)

		// Admin-triggered recomputation
		admin := popularity.Group("")
		admin.Use(middleware.AuthRequired(jwtSecret))
		{
			admin.POST("/update-all", middleware.AdminRequired(), popularityHandler.UpdateAll)
			admin.POST("/update-trip/:trip_id", middleware.RolesRequired("admin", "driver"), popularityHandler.UpdateTrip)
			admin.POST("/update-route", middleware.AdminRequired(), popularityHandler.UpdateRoute)
		}
	}
}
