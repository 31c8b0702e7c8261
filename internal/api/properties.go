package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FOCUS1407/gestion-immobiliere/internal/services"
)

func (h *Handler) ListOwners(c *gin.Context) {
	owners, page, err := h.services.Owners.ListOwners(c.Request.Context(), currentActor(c), pagination(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Page{Results: owners, Pagination: page})
}

func (h *Handler) CreateOwner(c *gin.Context) {
	var in services.OwnerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	created, err := h.services.Owners.CreateOwner(c.Request.Context(), currentActor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetOwner(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	owner, err := h.services.Owners.GetOwner(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

func (h *Handler) UpdateOwner(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.OwnerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	owner, err := h.services.Owners.UpdateOwner(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

func (h *Handler) DeleteOwner(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.Owners.DeleteOwner(c.Request.Context(), currentActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateBuilding(c *gin.Context) {
	ownerID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.BuildingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	building, err := h.services.Buildings.CreateBuilding(c.Request.Context(), currentActor(c), ownerID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, building)
}

func (h *Handler) ListBuildings(c *gin.Context) {
	ownerID, err := optionalID(c, "owner_id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	buildings, err := h.services.Buildings.ListBuildings(c.Request.Context(), currentActor(c), ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildings)
}

func (h *Handler) BuildingMap(c *gin.Context) {
	fc, err := h.services.Buildings.BuildingMap(c.Request.Context(), currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) GetBuilding(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	building, err := h.services.Buildings.GetBuilding(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, building)
}

func (h *Handler) UpdateBuilding(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.BuildingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	building, err := h.services.Buildings.UpdateBuilding(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, building)
}

func (h *Handler) DeleteBuilding(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.Buildings.DeleteBuilding(c.Request.Context(), currentActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GeocodeBuilding(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	building, err := h.services.Buildings.GeocodeBuilding(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, building)
}

func (h *Handler) CreateUnit(c *gin.Context) {
	buildingID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.UnitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	unit, err := h.services.Buildings.CreateUnit(c.Request.Context(), currentActor(c), buildingID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func (h *Handler) GetUnit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	unit, err := h.services.Buildings.GetUnit(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *Handler) UpdateUnit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.UnitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	unit, err := h.services.Buildings.UpdateUnit(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *Handler) DeleteUnit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.Buildings.DeleteUnit(c.Request.Context(), currentActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AssignTenant(c *gin.Context) {
	unitID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.LeaseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	lease, err := h.services.Buildings.AssignTenant(c.Request.Context(), currentActor(c), unitID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lease)
}

func (h *Handler) ReleaseUnit(c *gin.Context) {
	unitID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ReleaseRequest
	// An empty body releases the unit today.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}
	lease, err := h.services.Buildings.ReleaseUnit(c.Request.Context(), currentActor(c), unitID, req.EndDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lease)
}

func (h *Handler) ListTenants(c *gin.Context) {
	tenants, page, err := h.services.Tenants.ListTenants(c.Request.Context(), currentActor(c), c.Query("search"), pagination(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Page{Results: tenants, Pagination: page})
}

func (h *Handler) CreateTenant(c *gin.Context) {
	var in services.TenantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	tenant, err := h.services.Tenants.CreateTenant(c.Request.Context(), currentActor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (h *Handler) GetTenant(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tenant, err := h.services.Tenants.GetTenant(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *Handler) UpdateTenant(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.TenantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	tenant, err := h.services.Tenants.UpdateTenant(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *Handler) DeleteTenant(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.Tenants.DeleteTenant(c.Request.Context(), currentActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
