package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	seqdomain "github.com/smallbiznis/atelier/internal/sequence/domain"
)

func (s *Server) GetSequence(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	docType, err := seqdomain.ParseDocType(c.Param("doc_type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	seq, err := s.sequenceSvc.Get(c.Request.Context(), p.OrgID, docType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": seq})
}

func (s *Server) UpdateSequence(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	docType, err := seqdomain.ParseDocType(c.Param("doc_type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req seqdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	seq, err := s.sequenceSvc.UpdateConfig(c.Request.Context(), p.OrgID, docType, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": seq})
}

func (s *Server) PreviewSequence(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	docType, err := seqdomain.ParseDocType(c.Param("doc_type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	next, err := s.sequenceSvc.Preview(c.Request.Context(), p.OrgID, docType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"next_number": next}})
}
