package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/payment/checkout"
	"go.uber.org/zap"
)

type fakeOrganizationService struct {
	members map[snowflake.ID][]snowflake.ID
}

func (f *fakeOrganizationService) Create(ctx context.Context, ownerID snowflake.ID, req orgdomain.CreateRequest) (*orgdomain.Organization, error) {
	return &orgdomain.Organization{ID: 1, Name: req.Name, Plan: req.Plan}, nil
}

func (f *fakeOrganizationService) Get(ctx context.Context, orgID snowflake.ID) (*orgdomain.Organization, error) {
	if _, ok := f.members[orgID]; !ok {
		return nil, orgdomain.ErrNotFound
	}
	return &orgdomain.Organization{ID: orgID, Name: "Studio Lune", Plan: orgdomain.PlanFree}, nil
}

func (f *fakeOrganizationService) MemberIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	members, ok := f.members[orgID]
	if !ok {
		return nil, orgdomain.ErrNotFound
	}
	return members, nil
}

func (f *fakeOrganizationService) SetStripeCredentials(ctx context.Context, orgID snowflake.ID, req orgdomain.StripeCredentialsRequest) error {
	return nil
}

func (f *fakeOrganizationService) LinkConnectAccount(ctx context.Context, orgID snowflake.ID, accountID string) error {
	return nil
}

func (f *fakeOrganizationService) ChangePlan(ctx context.Context, orgID snowflake.ID, plan string, commissionRate decimal.Decimal) error {
	return nil
}

type fakeWebhookReconciler struct {
	payload   []byte
	signature string
	err       error
}

func (f *fakeWebhookReconciler) Handle(ctx context.Context, payload []byte, signature string) error {
	f.payload = payload
	f.signature = signature
	return f.err
}

type fakeCheckoutSessions struct {
	session *checkout.Session
	err     error
}

func (f *fakeCheckoutSessions) CreateSession(ctx context.Context, invoiceID snowflake.ID) (*checkout.Session, error) {
	return f.session, f.err
}

func newTestServer(t *testing.T, configure func(*Server)) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:          engine,
		log:             zap.NewNop(),
		organizationSvc: &fakeOrganizationService{members: map[snowflake.ID][]snowflake.ID{}},
		webhookSvc:      &fakeWebhookReconciler{},
		checkoutSvc:     &fakeCheckoutSessions{},
	}
	if configure != nil {
		configure(s)
	}

	s.registerWebhookRoutes()
	s.registerPublicRoutes()
	s.registerAPIRoutes()
	s.registerFallback()
	return s
}

func perform(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rec := perform(s, http.MethodGet, "/nope", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
