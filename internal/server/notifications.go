package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
)

func (s *Server) ListNotifications(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items, pageInfo, err := s.notificationSvc.List(c.Request.Context(), p.OrgID, p.UserID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": pageInfo})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	p, id, ok := s.scopedID(c)
	if !ok {
		return
	}

	if err := s.notificationSvc.MarkRead(c.Request.Context(), p.OrgID, p.UserID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
