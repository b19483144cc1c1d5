package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/money"
	"github.com/smallbiznis/atelier/internal/orgcontext"
)

type lineRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   int64           `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"`
}

type createInvoiceRequest struct {
	ClientID  string        `json:"client_id"`
	IssueDate *time.Time    `json:"issue_date"`
	DueDate   *time.Time    `json:"due_date"`
	Notes     string        `json:"notes"`
	Lines     []lineRequest `json:"lines"`
}

type createQuoteRequest struct {
	ClientID   string        `json:"client_id"`
	IssueDate  *time.Time    `json:"issue_date"`
	ValidUntil *time.Time    `json:"valid_until"`
	Notes      string        `json:"notes"`
	Lines      []lineRequest `json:"lines"`
}

type updateLinesRequest struct {
	Lines []lineRequest `json:"lines"`
}

type transitionRequest struct {
	Status   string `json:"status"`
	SignedBy string `json:"signed_by"`
}

func toMoneyLines(lines []lineRequest) []money.Line {
	return lo.Map(lines, func(line lineRequest, _ int) money.Line {
		return money.Line{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			VATRate:     line.VATRate,
		}
	})
}

func parseClientID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, newValidationError("client_id", "invalid_client", "client_id is required")
	}
	return id, nil
}

func (s *Server) CreateInvoice(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseClientID(req.ClientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.documentSvc.CreateInvoice(c.Request.Context(), p.OrgID, p.UserID, documentdomain.CreateInvoiceRequest{
		ClientID:  clientID,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
		Lines:     toMoneyLines(req.Lines),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req documentdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.documentSvc.ListInvoices(c.Request.Context(), p.OrgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	invoice, err := s.documentSvc.GetInvoice(c.Request.Context(), p.OrgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) UpdateInvoiceLines(c *gin.Context) {
	s.updateLines(c, documentdomain.DocTypeInvoice)
}

func (s *Server) TransitionInvoice(c *gin.Context) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.documentSvc.TransitionInvoice(c.Request.Context(), p.OrgID, id, documentdomain.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) MarkInvoiceDelivered(c *gin.Context) {
	s.markDelivered(c, documentdomain.DocTypeInvoice)
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	s.softDelete(c, documentdomain.DocTypeInvoice)
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := s.documentSvc.GetInvoice(ctx, p.OrgID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	payments, err := s.paymentRepo.ListPaymentsByInvoice(ctx, s.db, p.OrgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) CreateQuote(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseClientID(req.ClientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	quote, err := s.documentSvc.CreateQuote(c.Request.Context(), p.OrgID, p.UserID, documentdomain.CreateQuoteRequest{
		ClientID:   clientID,
		IssueDate:  req.IssueDate,
		ValidUntil: req.ValidUntil,
		Notes:      req.Notes,
		Lines:      toMoneyLines(req.Lines),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": quote})
}

func (s *Server) ListQuotes(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req documentdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.documentSvc.ListQuotes(c.Request.Context(), p.OrgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Quotes, "page_info": resp.PageInfo})
}

func (s *Server) GetQuote(c *gin.Context) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	quote, err := s.documentSvc.GetQuote(c.Request.Context(), p.OrgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) UpdateQuoteLines(c *gin.Context) {
	s.updateLines(c, documentdomain.DocTypeQuote)
}

func (s *Server) TransitionQuote(c *gin.Context) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quote, err := s.documentSvc.TransitionQuote(c.Request.Context(), p.OrgID, id, documentdomain.Status(strings.TrimSpace(req.Status)), req.SignedBy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) ConvertQuote(c *gin.Context) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	invoice, err := s.documentSvc.ConvertQuote(c.Request.Context(), p.OrgID, p.UserID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) MarkQuoteDelivered(c *gin.Context) {
	s.markDelivered(c, documentdomain.DocTypeQuote)
}

func (s *Server) DeleteQuote(c *gin.Context) {
	s.softDelete(c, documentdomain.DocTypeQuote)
}

func (s *Server) updateLines(c *gin.Context, docType documentdomain.DocType) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	var req updateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.documentSvc.UpdateDraftLines(c.Request.Context(), p.OrgID, docType, id, toMoneyLines(req.Lines)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) markDelivered(c *gin.Context, docType documentdomain.DocType) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	if err := s.documentSvc.MarkDelivered(c.Request.Context(), p.OrgID, docType, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) softDelete(c *gin.Context, docType documentdomain.DocType) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	if err := s.documentSvc.SoftDelete(c.Request.Context(), p.OrgID, docType, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// scopedID resolves the principal and the :id path parameter, aborting the
// request on failure.
func (s *Server) scopedID(c *gin.Context) (orgcontext.Principal, snowflake.ID, bool) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return orgcontext.Principal{}, 0, false
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return orgcontext.Principal{}, 0, false
	}
	return p, id, true
}
