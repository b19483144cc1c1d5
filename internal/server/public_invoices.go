package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetPublicInvoice(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	invoice, err := s.publicInvoiceSvc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) CreatePublicCheckoutSession(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	session, err := s.checkoutSvc.CreateSession(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}
