package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/payment"
	"github.com/satriadwik/dealroom-be/pkg/logger"
	"github.com/satriadwik/dealroom-be/pkg/retry"
)

type PaymentHandler struct {
	reconciler *payment.Reconciler
	poller     *payment.Poller
	logger     *logger.Logger
}

func NewPaymentHandler(reconciler *payment.Reconciler, poller *payment.Poller, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciler: reconciler,
		poller:     poller,
		logger:     log,
	}
}

type checkoutRequest struct {
	Phase string `json:"phase"`
}

func (h *PaymentHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	phase, err := domain.ParsePhase(req.Phase)
	if err != nil {
		return writeError(c, err)
	}

	session, err := h.reconciler.InitiateCheckout(ctx, c.Param("id"), phase)
	if err != nil {
		h.logger.Error(ctx, "Failed to initiate checkout",
			"phase", phase,
			"error", err,
		)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, session)
}

type confirmRequest struct {
	Phase string `json:"phase"`
}

func (h *PaymentHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()

	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	phase, err := domain.ParsePhase(req.Phase)
	if err != nil {
		return writeError(c, err)
	}

	tx, err := h.reconciler.ConfirmCardPayment(ctx, c.Param("id"), phase)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

// Return is the checkout-redirect landing: it tries the synchronous
// confirmation first, retrying gateway hiccups with backoff, then falls
// back to the bounded poll that covers the gap until webhook delivery.
func (h *PaymentHandler) Return(c echo.Context) error {
	ctx := c.Request().Context()

	transactionID := c.QueryParam("transaction_id")
	phase, err := domain.ParsePhase(c.QueryParam("phase"))
	if err != nil || transactionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "transaction_id and phase are required",
		})
	}

	var tx *domain.Transaction
	var confirmErr error
	retryErr := retry.Do(ctx, func() error {
		tx, confirmErr = h.reconciler.ConfirmCardPayment(ctx, transactionID, phase)
		if confirmErr != nil && errors.Is(confirmErr, domain.ErrPaymentVerificationFailed) {
			return confirmErr
		}
		return nil
	}, retry.WithMaxAttempts(3), retry.WithBaseDelay(500*time.Millisecond))

	if retryErr == nil && confirmErr == nil {
		return c.JSON(http.StatusOK, tx)
	}
	if confirmErr != nil && !errors.Is(confirmErr, domain.ErrPaymentVerificationFailed) {
		return writeError(c, confirmErr)
	}

	// The charge has not settled yet; wait for the webhook to land.
	tx, err = h.poller.WaitForPayment(ctx, transactionID, phase)
	if err != nil {
		h.logger.Warn(ctx, "Payment confirmation not observed",
			"phase", phase,
			"error", err,
		)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}

func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	var event payment.WebhookEvent
	if err := c.Bind(&event); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid webhook payload",
		})
	}

	tx, err := h.reconciler.HandleWebhook(ctx, event)
	if err != nil {
		h.logger.Error(ctx, "Webhook processing failed",
			"event_id", event.ID,
			"error", err,
		)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"transaction_id": event.TransactionID,
		"status":         tx.Status,
	})
}

// BankClaim accepts a multipart form: phase, reference_code, and an
// optional payment-proof file.
func (h *PaymentHandler) BankClaim(c echo.Context) error {
	ctx := c.Request().Context()

	phase, err := domain.ParsePhase(c.FormValue("phase"))
	if err != nil {
		return writeError(c, err)
	}
	referenceCode := c.FormValue("reference_code")
	if referenceCode == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "reference_code is required",
		})
	}

	var proofName string
	var proof []byte
	if file, err := c.FormFile("proof"); err == nil {
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to open proof file",
			})
		}
		defer src.Close()

		proof, err = io.ReadAll(src)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to read proof file",
			})
		}
		proofName = file.Filename
	}

	tx, err := h.reconciler.ClaimBankTransfer(ctx, c.Param("id"), phase, referenceCode, proofName, proof)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, tx)
}

type claimDecisionRequest struct {
	Phase    string `json:"phase"`
	Decision string `json:"decision"`
}

func (h *PaymentHandler) ConfirmBankClaim(c echo.Context) error {
	ctx := c.Request().Context()

	var req claimDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	phase, err := domain.ParsePhase(req.Phase)
	if err != nil {
		return writeError(c, err)
	}
	if req.Decision != "accept" && req.Decision != "reject" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "decision must be accept or reject",
		})
	}

	tx, err := h.reconciler.ConfirmBankTransfer(ctx, c.Param("id"), phase, req.Decision == "accept")
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tx)
}
