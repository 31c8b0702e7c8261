package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FOCUS1407/gestion-immobiliere/internal/export"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/services"
)

// RecordPayment accepts JSON or a multipart form carrying a "proof" file.
func (h *Handler) RecordPayment(c *gin.Context) {
	unitID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.PaymentInput
	if err := c.ShouldBind(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	proof, closer, err := formFile(c, "proof")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closer.Close()

	payment, err := h.services.Payments.RecordPayment(c.Request.Context(), currentActor(c), unitID, in, proof)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.PaymentInput
	if err := c.ShouldBind(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	proof, closer, err := formFile(c, "proof")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closer.Close()

	payment, err := h.services.Payments.UpdatePayment(c.Request.Context(), currentActor(c), id, in, proof)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) DeletePayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.Payments.DeletePayment(c.Request.Context(), currentActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) TenantPayments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	payments, page, err := h.services.Payments.TenantPayments(c.Request.Context(), currentActor(c), id, pagination(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Page{Results: payments, Pagination: page})
}

func (h *Handler) TenantMonthPayments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	month, err := models.ParseMonth(c.Param("year") + "-" + c.Param("month"))
	if err != nil {
		h.respondError(c, services.NewValidationError("month", err.Error()))
		return
	}
	payments, err := h.services.Payments.TenantMonthPayments(c.Request.Context(), currentActor(c), id, month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) TenantPaymentsCSV(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tenant, payments, err := h.services.Payments.TenantPaymentsExport(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, export.TenantPaymentsFilename(tenant))
	if err := export.WritePayments(c.Writer, payments); err != nil {
		h.logger.WithError(err).Error("Failed to write payments export")
	}
}

func (h *Handler) MonthPaymentsCSV(c *gin.Context) {
	month, err := h.monthQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payments, err := h.services.Payments.MonthPayments(c.Request.Context(), currentActor(c), month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, export.MonthPaymentsFilename(month))
	if err := export.WritePayments(c.Writer, payments); err != nil {
		h.logger.WithError(err).Error("Failed to write payments export")
	}
}

func (h *Handler) ListMoveReports(c *gin.Context) {
	leaseID, ok := idParam(c, "id")
	if !ok {
		return
	}
	reports, err := h.services.MoveReports.ListReports(c.Request.Context(), currentActor(c), leaseID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) CreateMoveReport(c *gin.Context) {
	leaseID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.MoveReportInput
	if err := c.ShouldBind(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	doc, closer, err := formFile(c, "document")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closer.Close()

	report, err := h.services.MoveReports.CreateReport(c.Request.Context(), currentActor(c), leaseID, in, doc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *Handler) UpdateMoveReport(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.MoveReportInput
	if err := c.ShouldBind(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	doc, closer, err := formFile(c, "document")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closer.Close()

	report, err := h.services.MoveReports.UpdateReport(c.Request.Context(), currentActor(c), id, in, doc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) DeleteMoveReport(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.MoveReports.DeleteReport(c.Request.Context(), currentActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListPaymentMethods(c *gin.Context) {
	methods, err := h.services.Payments.ListPaymentMethods(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, methods)
}

func (h *Handler) AddPaymentMethod(c *gin.Context) {
	var req PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	method, err := h.services.Payments.AddPaymentMethod(c.Request.Context(), currentActor(c), req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, method)
}

func (h *Handler) DeletePaymentMethod(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.Payments.DeletePaymentMethod(c.Request.Context(), currentActor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListPropertyTypes(c *gin.Context) {
	types, err := h.services.Payments.ListPropertyTypes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}
