package services

import (
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

// Actor is the authenticated user on whose behalf a service call runs.
type Actor struct {
	User   models.User
	Agency *models.Agency
	Owner  *models.Owner
}

func (a *Actor) IsAgency() bool {
	return a != nil && a.User.Role == models.RoleAgency && a.Agency != nil
}

func (a *Actor) IsOwner() bool {
	return a != nil && a.User.Role == models.RoleOwner && a.Owner != nil
}

// AgencyID is the agency the actor works for or with.
func (a *Actor) AgencyID() uint {
	switch {
	case a.IsAgency():
		return a.Agency.ID
	case a.IsOwner():
		return a.Owner.AgencyID
	}
	return 0
}

func requireAgency(a *Actor) error {
	if !a.IsAgency() {
		return ErrForbidden
	}
	return nil
}

// canReadOwner reports whether the actor may see data belonging to owner.
func (a *Actor) canReadOwner(owner *models.Owner) bool {
	if a.IsAgency() {
		return owner.AgencyID == a.Agency.ID
	}
	if a.IsOwner() {
		return owner.ID == a.Owner.ID
	}
	return false
}

func (a *Actor) canManageOwner(owner *models.Owner) bool {
	return a.IsAgency() && owner.AgencyID == a.Agency.ID
}
