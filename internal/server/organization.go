package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/orgcontext"
)

type createOrganizationRequest struct {
	Name           string           `json:"name"`
	Plan           string           `json:"plan"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

type stripeCredentialsRequest struct {
	SecretKey      string `json:"secret_key"`
	PublishableKey string `json:"publishable_key"`
}

type connectAccountRequest struct {
	AccountID string `json:"account_id"`
}

type changePlanRequest struct {
	Plan           string          `json:"plan"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := orgcontext.UserID(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), userID, orgdomain.CreateRequest{
		Name:           req.Name,
		Plan:           req.Plan,
		CommissionRate: lo.FromPtrOr(req.CommissionRate, decimal.Zero),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": org})
}

func (s *Server) GetOrganization(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.organizationSvc.Get(c.Request.Context(), p.OrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}

func (s *Server) SetStripeCredentials(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req stripeCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.organizationSvc.SetStripeCredentials(c.Request.Context(), p.OrgID, orgdomain.StripeCredentialsRequest{
		SecretKey:      req.SecretKey,
		PublishableKey: req.PublishableKey,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) LinkConnectAccount(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req connectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.organizationSvc.LinkConnectAccount(c.Request.Context(), p.OrgID, strings.TrimSpace(req.AccountID)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ChangePlan(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.organizationSvc.ChangePlan(c.Request.Context(), p.OrgID, req.Plan, req.CommissionRate); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetQuota(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	usage, err := s.quotaSvc.Usage(c.Request.Context(), p.OrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": usage})
}
