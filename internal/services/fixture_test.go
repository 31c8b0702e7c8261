package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/database"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/processor"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

const testPassword = "Password123!"

// memoryStore keeps uploads in a map.
type memoryStore struct {
	mu    sync.Mutex
	next  int
	files map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (m *memoryStore) Save(kind storage.Kind, up *storage.Upload) (string, error) {
	data, err := io.ReadAll(up.Reader)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", storage.ErrEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	path := fmt.Sprintf("%s/%d", kind, m.next)
	m.files[path] = data
	return path, nil
}

func (m *memoryStore) SavePhoto(up *storage.Upload) (string, error) {
	return m.Save(storage.KindPhoto, up)
}

func (m *memoryStore) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *memoryStore) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	cfg   *config.Config
	files *memoryStore
	svc   *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Notifications.RetryDelay = 0
	files := newMemoryStore()
	svc := NewServices(Dependencies{
		DB:     db,
		Config: cfg,
		Tokens: auth.NewTokenManager("test-secret", time.Hour),
		Files:  files,
		Sink:   processor.NewNotificationProcessor(db, nil, cfg, logger),
		Logger: logger,
	})
	return &fixture{t: t, ctx: context.Background(), db: db, cfg: cfg, files: files, svc: svc}
}

func (f *fixture) actor(userID uint) *Actor {
	f.t.Helper()
	a, err := f.svc.Accounts.ResolveActor(f.ctx, userID)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) agency(username, siret string) *Actor {
	f.t.Helper()
	user, err := f.svc.Accounts.RegisterAgency(f.ctx, RegisterAgencyInput{
		Username:  username,
		Password:  testPassword,
		FirstName: "Agency",
		LastName:  username,
		Email:     username + "@example.com",
		SIRET:     siret,
	})
	require.NoError(f.t, err)
	return f.actor(user.ID)
}

func (f *fixture) owner(agency *Actor, first, last string, rate float64) (*OwnerCreated, *Actor) {
	f.t.Helper()
	created, err := f.svc.Owners.CreateOwner(f.ctx, agency, OwnerInput{
		FirstName:      first,
		LastName:       last,
		Email:          fmt.Sprintf("%s.%s@example.com", first, last),
		CommissionRate: rate,
		ContractStart:  "2024-01-01",
		ContractMonths: 12,
	})
	require.NoError(f.t, err)
	return created, f.actor(created.Owner.UserID)
}

func (f *fixture) propertyType(code string) uint {
	f.t.Helper()
	var pt models.PropertyType
	require.NoError(f.t, f.db.Where("code = ?", code).First(&pt).Error)
	return pt.ID
}

func (f *fixture) paymentMethod(code string) uint {
	f.t.Helper()
	var pm models.PaymentMethod
	require.NoError(f.t, f.db.Where("code = ?", code).First(&pm).Error)
	return pm.ID
}

func (f *fixture) building(agency *Actor, ownerID uint, address string) *models.Building {
	f.t.Helper()
	b, err := f.svc.Buildings.CreateBuilding(f.ctx, agency, ownerID, BuildingInput{
		Address:        address,
		PropertyTypeID: f.propertyType(models.PropertyTypeResidential),
		Area:           120,
		Rooms:          4,
	})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) unit(agency *Actor, buildingID uint, designation string, rent float64) *models.Unit {
	f.t.Helper()
	u, err := f.svc.Buildings.CreateUnit(f.ctx, agency, buildingID, UnitInput{
		Designation: designation,
		Area:        20,
		Rent:        rent,
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) tenant(agency *Actor, first, last string) *models.Tenant {
	f.t.Helper()
	tn, err := f.svc.Tenants.CreateTenant(f.ctx, agency, TenantInput{
		FirstName: first,
		LastName:  last,
		Phone:     "06 12 34 56 78",
	})
	require.NoError(f.t, err)
	return tn
}

func (f *fixture) lease(agency *Actor, unitID, tenantID uint, start string) *models.Lease {
	f.t.Helper()
	l, err := f.svc.Buildings.AssignTenant(f.ctx, agency, unitID, LeaseInput{
		TenantID:        tenantID,
		StartDate:       start,
		PaymentMethodID: f.paymentMethod(models.PaymentMethodCash),
	})
	require.NoError(f.t, err)
	return l
}

func (f *fixture) pay(agency *Actor, unitID uint, month string, amount float64) *models.Payment {
	f.t.Helper()
	p, err := f.svc.Payments.RecordPayment(f.ctx, agency, unitID, PaymentInput{
		Amount:          amount,
		PaymentDate:     month + "-05",
		CoveredMonth:    month,
		PaymentMethodID: f.paymentMethod(models.PaymentMethodCash),
	}, nil)
	require.NoError(f.t, err)
	return p
}

// portfolio is one agency with an owner, a building, a rented unit and a
// vacant one.
type portfolio struct {
	agency     *Actor
	owner      *OwnerCreated
	ownerActor *Actor
	building   *models.Building
	rented     *models.Unit
	vacant     *models.Unit
	tenant     *models.Tenant
	lease      *models.Lease
}

func (f *fixture) portfolio(username, siret string) *portfolio {
	f.t.Helper()
	p := &portfolio{agency: f.agency(username, siret)}
	p.owner, p.ownerActor = f.owner(p.agency, "Jean", "Dupont"+username, 10)
	p.building = f.building(p.agency, p.owner.Owner.ID, "12 rue de la Paix, Paris")
	p.rented = f.unit(p.agency, p.building.ID, "Room A", 500)
	p.vacant = f.unit(p.agency, p.building.ID, "Room B", 400)
	p.tenant = f.tenant(p.agency, "Marie", "Curie")
	p.lease = f.lease(p.agency, p.rented.ID, p.tenant.ID, "2024-01-15")
	return p
}
