package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/smallbiznis/atelier/internal/export"
)

func (s *Server) ExportInvoicesCSV(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	file, err := s.exportSvc.InvoicesCSV(c.Request.Context(), p.OrgID,
		lo.FromPtrOr(from, time.Time{}),
		lo.FromPtrOr(to, time.Time{}),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeAttachment(c, file)
}

func (s *Server) ExportFEC(c *gin.Context) {
	p, err := principal(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	year, err := export.ParseYear(c.Query("year"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	file, err := s.exportSvc.FEC(c.Request.Context(), p.OrgID, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeAttachment(c, file)
}

func writeAttachment(c *gin.Context, file *export.File) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
