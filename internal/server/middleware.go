package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/orgcontext"
)

const (
	HeaderOrg  = "X-Org-ID"
	HeaderUser = "X-User-ID"
)

// UserRequired resolves the acting user for routes that run before an
// organization exists.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := headerID(c, HeaderUser)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := orgcontext.WithPrincipal(c.Request.Context(), orgcontext.Principal{UserID: userID})
		ctx = obscontext.WithActor(ctx, "user", userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgContext resolves the organization once and checks the user belongs to it.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := headerID(c, HeaderUser)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID, ok := headerID(c, HeaderOrg)
		if !ok {
			AbortWithError(c, newValidationError("organization", "invalid_organization", "X-Org-ID header is required"))
			return
		}

		members, err := s.organizationSvc.MemberIDs(c.Request.Context(), orgID)
		if err != nil {
			if errors.Is(err, orgdomain.ErrNotFound) {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}
		if !lo.Contains(members, userID) {
			AbortWithError(c, ErrForbidden)
			return
		}

		ctx := orgcontext.WithPrincipal(c.Request.Context(), orgcontext.Principal{OrgID: orgID, UserID: userID})
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		ctx = obscontext.WithActor(ctx, "user", userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func headerID(c *gin.Context, header string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetHeader(header))
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func principal(c *gin.Context) (orgcontext.Principal, error) {
	p, ok := orgcontext.FromContext(c.Request.Context())
	if !ok {
		return orgcontext.Principal{}, ErrUnauthorized
	}
	return p, nil
}
