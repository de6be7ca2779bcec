package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/service"
	"github.com/satriadwik/dealroom-be/internal/workflow"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

type TransactionHandler struct {
	service service.DealService
	logger  *logger.Logger
}

func NewTransactionHandler(svc service.DealService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  log,
	}
}

type createRequest struct {
	ListingID string       `json:"listing_id"`
	Buyer     domain.Party `json:"buyer"`
	Seller    domain.Party `json:"seller"`
}

func (h *TransactionHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.ListingID == "" || req.Buyer.ID == "" || req.Seller.ID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "listing_id, buyer.id and seller.id are required",
		})
	}

	tx, err := h.service.Create(ctx, req.ListingID, req.Buyer, req.Seller)
	if err != nil {
		h.logger.Error(ctx, "Failed to create transaction",
			"listing_id", req.ListingID,
			"error", err,
		)
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, tx)
}

func (h *TransactionHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	tx, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) View(c echo.Context) error {
	ctx := c.Request().Context()

	role, err := domain.ParseRole(c.QueryParam("role"))
	if err != nil {
		return writeError(c, err)
	}

	progress := workflow.ClientProgress{
		IntentConfirmed: parseBool(c.QueryParam("intent_confirmed")),
		TermsAccepted:   parseBool(c.QueryParam("terms_accepted")),
	}

	view, err := h.service.View(ctx, c.Param("id"), role, progress)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

type approveRequest struct {
	Role string `json:"role"`
}

func (h *TransactionHandler) Approve(c echo.Context) error {
	ctx := c.Request().Context()

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return writeError(c, err)
	}

	tx, err := h.service.Approve(ctx, c.Param("id"), role)
	if err != nil {
		h.logger.Error(ctx, "Approval failed",
			"role", role,
			"error", err,
		)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) ApproveDeposit(c echo.Context) error {
	ctx := c.Request().Context()

	tx, err := h.service.ApproveDeposit(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) EnterFinalReview(c echo.Context) error {
	ctx := c.Request().Context()

	tx, err := h.service.EnterFinalReview(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

type closeRequest struct {
	Note string `json:"note"`
}

func (h *TransactionHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	var req closeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	tx, err := h.service.Cancel(ctx, c.Param("id"), req.Note)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) Dispute(c echo.Context) error {
	ctx := c.Request().Context()

	var req closeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	tx, err := h.service.Dispute(ctx, c.Param("id"), req.Note)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

type messageRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

func (h *TransactionHandler) PostMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req messageRequest
	if err := c.Bind(&req); err != nil || req.Body == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "author and body are required",
		})
	}

	author, err := domain.ParseRole(req.Author)
	if err != nil {
		return writeError(c, err)
	}

	msg, err := h.service.PostMessage(ctx, c.Param("id"), author, req.Body)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, msg)
}

func (h *TransactionHandler) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()

	msgs, err := h.service.ListMessages(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"transaction_id": c.Param("id"),
		"items":          msgs,
	})
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
