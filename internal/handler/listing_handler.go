package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/integrations"
)

// ListingHandler is the seeding surface for the stand-in catalog. In
// production the catalog is an external service; this exists so local
// deployments can register deal terms to open transactions against.
type ListingHandler struct {
	catalog *integrations.MemoryListingCatalog
}

func NewListingHandler(catalog *integrations.MemoryListingCatalog) *ListingHandler {
	return &ListingHandler{catalog: catalog}
}

type listingRequest struct {
	Title         string `json:"title"`
	SellerID      string `json:"seller_id"`
	Price         int64  `json:"price"`
	DepositAmount int64  `json:"deposit_amount"`
}

func (h *ListingHandler) Create(c echo.Context) error {
	var req listingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.SellerID == "" || req.Price <= 0 || req.DepositAmount <= 0 || req.DepositAmount > req.Price {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "seller_id, price and deposit_amount are required; deposit must not exceed price",
		})
	}

	listing := domain.Listing{
		ID:            uuid.New().String(),
		Title:         req.Title,
		SellerID:      req.SellerID,
		Price:         req.Price,
		DepositAmount: req.DepositAmount,
	}
	h.catalog.Seed(listing)

	return c.JSON(http.StatusCreated, listing)
}

func (h *ListingHandler) Get(c echo.Context) error {
	listing, err := h.catalog.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}
