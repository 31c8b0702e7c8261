package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FOCUS1407/gestion-immobiliere/internal/export"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/services"
)

// reportRequest is the parsed query of the financial report endpoints.
// Without a month, a single owner's report becomes its history.
type reportRequest struct {
	ownerID uint
	month   models.Month
	history bool
}

func (h *Handler) parseReportRequest(c *gin.Context, actor *services.Actor) (reportRequest, error) {
	var req reportRequest
	var err error
	if req.ownerID, err = optionalID(c, "owner_id"); err != nil {
		return req, err
	}
	if c.Query("month") == "" && (actor.IsOwner() || req.ownerID != 0) {
		req.history = true
		return req, nil
	}
	req.month, err = h.monthQuery(c)
	return req, err
}

func (h *Handler) FinancialReport(c *gin.Context) {
	actor := currentActor(c)
	req, err := h.parseReportRequest(c, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if req.history {
		history, err := h.services.Reports.OwnerHistory(c.Request.Context(), actor, req.ownerID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
		return
	}
	report, err := h.services.Reports.FinancialReport(c.Request.Context(), actor, req.month, req.ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) FinancialReportCSV(c *gin.Context) {
	actor := currentActor(c)
	req, err := h.parseReportRequest(c, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	if req.history {
		history, err := h.services.Reports.OwnerHistory(ctx, actor, req.ownerID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		attachment(c, export.HistoryReportFilename(history.FirstName, history.LastName))
		if err := export.WriteOwnerHistory(c.Writer, history); err != nil {
			h.logger.WithError(err).Error("Failed to write history export")
		}
		return
	}

	report, err := h.services.Reports.FinancialReport(ctx, actor, req.month, req.ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var first, last string
	switch {
	case actor.IsOwner():
		first, last = actor.User.FirstName, actor.User.LastName
	case req.ownerID != 0:
		owner, err := h.services.Owners.GetOwner(ctx, actor, req.ownerID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		first, last = owner.User.FirstName, owner.User.LastName
	}
	attachment(c, export.FinancialReportFilename(req.month, first, last))
	if err := export.WriteFinancialReport(c.Writer, report); err != nil {
		h.logger.WithError(err).Error("Failed to write financial export")
	}
}

func (h *Handler) RentReport(c *gin.Context) {
	var filter services.RentFilter
	var err error
	if filter.Month, err = h.monthQuery(c); err != nil {
		h.respondError(c, err)
		return
	}
	if filter.OwnerID, err = optionalID(c, "owner_id"); err != nil {
		h.respondError(c, err)
		return
	}
	if filter.BuildingID, err = optionalID(c, "building_id"); err != nil {
		h.respondError(c, err)
		return
	}
	switch status := models.RentStatus(c.Query("status")); status {
	case "", models.RentPaid, models.RentPartial, models.RentUnpaid:
		filter.Status = status
	default:
		h.respondError(c, services.NewValidationError("status", "must be paid, partial or unpaid"))
		return
	}

	rows, err := h.services.Reports.RentReport(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true" || c.Query("unread") == "1"
	notifications, page, err := h.services.Notifications.ListNotifications(c.Request.Context(), currentActor(c), unreadOnly, pagination(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Page{Results: notifications, Pagination: page})
}

func (h *Handler) UnreadNotifications(c *gin.Context) {
	unread, err := h.services.Notifications.Unread(c.Request.Context(), currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unread)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.services.Notifications.MarkRead(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	count, err := h.services.Notifications.MarkAllRead(c.Request.Context(), currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}
