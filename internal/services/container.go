package services

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/cache"
)

// Dependencies are the infrastructure pieces the services are built on.
// Geocoder and Sink may be nil.
type Dependencies struct {
	DB       *gorm.DB
	Config   *config.Config
	Tokens   *auth.TokenManager
	Files    FileStore
	Cache    cache.Cache
	Geocoder Geocoder
	Sink     NotificationSink
	Logger   *logrus.Logger
}

// Services groups every business service behind its interface.
type Services struct {
	Accounts      InterfaceAccountService
	Owners        InterfaceOwnerService
	Buildings     InterfaceBuildingService
	Tenants       InterfaceTenantService
	Payments      InterfacePaymentService
	MoveReports   InterfaceMoveReportService
	Notifications InterfaceNotificationService
	Reports       InterfaceReportService
	LatePayments  *LatePaymentChecker
}

func NewServices(deps Dependencies) *Services {
	if deps.DB == nil {
		panic("services: database is nil")
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
		deps.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache()
	}

	reports := NewReportCache(deps.Cache, deps.Config.CacheTTL(), deps.Logger)
	s := &Services{
		Accounts:      NewAccountService(deps.DB, deps.Tokens, deps.Files, deps.Logger),
		Owners:        NewOwnerService(deps.DB, deps.Files, reports, deps.Logger),
		Buildings:     NewBuildingService(deps.DB, deps.Files, deps.Geocoder, reports, deps.Logger),
		Tenants:       NewTenantService(deps.DB, deps.Files, reports, deps.Logger),
		Payments:      NewPaymentService(deps.DB, deps.Files, reports, deps.Logger),
		MoveReports:   NewMoveReportService(deps.DB, deps.Files, deps.Logger),
		Notifications: NewNotificationService(deps.DB),
		Reports:       NewReportService(deps.DB, reports, deps.Logger),
	}
	if deps.Sink != nil {
		s.LatePayments = NewLatePaymentChecker(deps.DB, deps.Sink, deps.Config.LatePayments.GraceDay, deps.Logger)
	}
	return s
}
