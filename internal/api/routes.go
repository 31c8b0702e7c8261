package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine with recovery, access log and CORS, then
// registers every route.
func NewRouter(handler *Handler, origins []string, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), AccessLog(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	router.Use(cors.New(corsConfig))

	SetupRoutes(router, handler)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/healthz", handler.Health)

	public := router.Group("/api/auth")
	{
		public.POST("/register", handler.Register)
		public.POST("/login", handler.Login)
	}

	api := router.Group("/api", handler.RequireAuth(), handler.RequirePasswordChanged())
	{
		api.GET("/auth/me", handler.Me)
		api.POST("/auth/change-password", handler.ChangePassword)

		api.PUT("/profile", handler.UpdateProfile)
		api.PUT("/profile/agency", handler.UpdateAgencyProfile)
		api.POST("/profile/photo", handler.UploadProfilePhoto)
		api.GET("/dashboard", handler.Dashboard)

		api.GET("/owners", handler.ListOwners)
		api.POST("/owners", handler.CreateOwner)
		api.GET("/owners/:id", handler.GetOwner)
		api.PUT("/owners/:id", handler.UpdateOwner)
		api.DELETE("/owners/:id", handler.DeleteOwner)
		api.POST("/owners/:id/buildings", handler.CreateBuilding)

		api.GET("/buildings", handler.ListBuildings)
		api.GET("/buildings/map", handler.BuildingMap)
		api.GET("/buildings/:id", handler.GetBuilding)
		api.PUT("/buildings/:id", handler.UpdateBuilding)
		api.DELETE("/buildings/:id", handler.DeleteBuilding)
		api.POST("/buildings/:id/geocode", handler.GeocodeBuilding)
		api.POST("/buildings/:id/units", handler.CreateUnit)

		api.GET("/units/:id", handler.GetUnit)
		api.PUT("/units/:id", handler.UpdateUnit)
		api.DELETE("/units/:id", handler.DeleteUnit)
		api.POST("/units/:id/leases", handler.AssignTenant)
		api.POST("/units/:id/release", handler.ReleaseUnit)
		api.POST("/units/:id/payments", handler.RecordPayment)

		api.GET("/tenants", handler.ListTenants)
		api.POST("/tenants", handler.CreateTenant)
		api.GET("/tenants/:id", handler.GetTenant)
		api.PUT("/tenants/:id", handler.UpdateTenant)
		api.DELETE("/tenants/:id", handler.DeleteTenant)
		api.GET("/tenants/:id/payments", handler.TenantPayments)
		api.GET("/tenants/:id/payments/:year/:month", handler.TenantMonthPayments)
		api.GET("/tenants/:id/payments.csv", handler.TenantPaymentsCSV)

		api.GET("/payments/export.csv", handler.MonthPaymentsCSV)
		api.PUT("/payments/:id", handler.UpdatePayment)
		api.DELETE("/payments/:id", handler.DeletePayment)

		api.GET("/leases/:id/move-reports", handler.ListMoveReports)
		api.POST("/leases/:id/move-reports", handler.CreateMoveReport)
		api.PUT("/move-reports/:id", handler.UpdateMoveReport)
		api.DELETE("/move-reports/:id", handler.DeleteMoveReport)

		api.GET("/payment-methods", handler.ListPaymentMethods)
		api.POST("/payment-methods", handler.AddPaymentMethod)
		api.DELETE("/payment-methods/:id", handler.DeletePaymentMethod)
		api.GET("/property-types", handler.ListPropertyTypes)

		api.GET("/reports/financial", handler.FinancialReport)
		api.GET("/reports/financial.csv", handler.FinancialReportCSV)
		api.GET("/reports/rents", handler.RentReport)

		api.GET("/notifications", handler.ListNotifications)
		api.GET("/notifications/unread", handler.UnreadNotifications)
		api.POST("/notifications/read-all", handler.MarkAllNotificationsRead)
		api.POST("/notifications/:id/read", handler.MarkNotificationRead)
	}
}
