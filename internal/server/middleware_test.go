package server

import (
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orgServer(t *testing.T) *Server {
	return newTestServer(t, func(s *Server) {
		s.organizationSvc = &fakeOrganizationService{members: map[snowflake.ID][]snowflake.ID{
			1: {3, 4},
		}}
	})
}

func TestOrgContextResolvesMember(t *testing.T) {
	s := orgServer(t)

	rec := perform(s, http.MethodGet, "/api/organization", "", map[string]string{
		HeaderOrg:  "1",
		HeaderUser: "4",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Studio Lune"`)
}

func TestOrgContextRequiresUser(t *testing.T) {
	s := orgServer(t)

	rec := perform(s, http.MethodGet, "/api/organization", "", map[string]string{HeaderOrg: "1"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrgContextRequiresOrganizationHeader(t *testing.T) {
	s := orgServer(t)

	rec := perform(s, http.MethodGet, "/api/organization", "", map[string]string{HeaderUser: "3"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrgContextRejectsNonMember(t *testing.T) {
	s := orgServer(t)

	rec := perform(s, http.MethodGet, "/api/organization", "", map[string]string{
		HeaderOrg:  "1",
		HeaderUser: "9",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrgContextHidesUnknownOrganization(t *testing.T) {
	s := orgServer(t)

	rec := perform(s, http.MethodGet, "/api/organization", "", map[string]string{
		HeaderOrg:  "2",
		HeaderUser: "3",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateOrganizationNeedsOnlyUser(t *testing.T) {
	s := orgServer(t)

	rec := perform(s, http.MethodPost, "/api/organizations", `{"name":"Atelier Nord","plan":"starter"}`, map[string]string{
		HeaderUser: "3",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Atelier Nord"`)
}
