package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

// CompanyManager manages tenants.
type CompanyManager interface {
	Create(ctx context.Context, name string) (*domain.Company, error)
	Rename(ctx context.Context, id, name string) (*domain.Company, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Company, error)
	List(ctx context.Context, q usecase.CompanyQuery) ([]domain.Company, error)
}

// CompanyHandler serves /companies.
type CompanyHandler struct {
	companies CompanyManager
	logger    *zap.Logger
}

// NewCompanyHandler constructs CompanyHandler.
func NewCompanyHandler(companies CompanyManager, logger *zap.Logger) *CompanyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyHandler{companies: companies, logger: logger}
}

// Create handles POST /companies.
func (h *CompanyHandler) Create(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid company payload")
		return
	}

	company, err := h.companies.Create(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, newCompanyResponse(company))
}

// Rename handles PUT /companies/:companyId.
func (h *CompanyHandler) Rename(c *gin.Context) {
	companyID, ok := pathID(c, h.logger, "companyId", "Company")
	if !ok {
		return
	}

	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid company payload")
		return
	}

	company, err := h.companies.Rename(c.Request.Context(), companyID, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCompanyResponse(company))
}

// Delete handles DELETE /companies/:companyId.
func (h *CompanyHandler) Delete(c *gin.Context) {
	companyID, ok := pathID(c, h.logger, "companyId", "Company")
	if !ok {
		return
	}

	if err := h.companies.Delete(c.Request.Context(), companyID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// List handles GET /companies.
func (h *CompanyHandler) List(c *gin.Context) {
	var q CompanyListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBadRequest(c, "page must be positive and pageSize between 1 and 100")
		return
	}

	companies, err := h.companies.List(c.Request.Context(), usecase.CompanyQuery{Name: q.Name, Page: q.Page, PageSize: q.PageSize})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := CompanyListResponse{Items: make([]CompanyResponse, 0, len(companies)), Page: q.Page, PageSize: q.PageSize}
	if resp.Page == 0 {
		resp.Page = 1
	}
	if resp.PageSize == 0 {
		resp.PageSize = 20
	}
	for i := range companies {
		resp.Items = append(resp.Items, newCompanyResponse(&companies[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /companies/:companyId.
func (h *CompanyHandler) Get(c *gin.Context) {
	companyID, ok := pathID(c, h.logger, "companyId", "Company")
	if !ok {
		return
	}

	company, err := h.companies.Get(c.Request.Context(), companyID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCompanyResponse(company))
}
