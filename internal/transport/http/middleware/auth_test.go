package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/policy"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

type fakeValidator struct {
	identity *domain.Identity
	err      error
	got      string
}

func (f *fakeValidator) ValidateAccess(_ context.Context, raw string) (*domain.Identity, error) {
	f.got = raw
	return f.identity, f.err
}

type fakeAuthorizer struct {
	err      error
	required []string
	caller   *domain.Identity
}

func (f *fakeAuthorizer) Authorize(_ context.Context, identity *domain.Identity, required []string) error {
	f.caller = identity
	f.required = required
	return f.err
}

func newAuthRouter(t *testing.T, validator AccessValidator, authorizer PermissionAuthorizer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := policy.NewRegistry().Register("offers.read.company", domain.PermOffersReadCompany)
	log := zaptest.NewLogger(t)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/offers",
		RequireAuth(validator, log),
		RequirePermission(authorizer, registry, "offers.read.company", log),
		func(c *gin.Context) {
			identity, _ := GetIdentity(c)
			c.String(http.StatusOK, identity.UserID)
		},
	)
	return router
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return body
}

func TestRequireAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	validator := &fakeValidator{identity: &domain.Identity{UserID: "u1"}}
	router := newAuthRouter(t, validator, &fakeAuthorizer{})

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/offers", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		req.Header.Set(RequestIDHeader, "req-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
		body := decodeEnvelope(t, rr)
		if body.StatusCode != http.StatusUnauthorized || body.CorrelationID != "req-1" {
			t.Fatalf("header %q: unexpected envelope %+v", header, body)
		}
	}
	if validator.got != "" {
		t.Fatalf("validator should not be called for malformed headers")
	}
}

func TestRequireAuthMapsValidationErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("%w: token expired", usecase.ErrUnauthenticated), want: http.StatusUnauthorized},
		{err: errors.New("signer misconfigured"), want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		router := newAuthRouter(t, &fakeValidator{err: tc.err}, &fakeAuthorizer{})
		req := httptest.NewRequest(http.MethodGet, "/offers", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}

func TestRequirePermissionPassesRegisteredKeys(t *testing.T) {
	identity := &domain.Identity{UserID: "u1", CompanyID: "c1", RoleIDs: []string{"r1"}}
	validator := &fakeValidator{identity: identity}
	authorizer := &fakeAuthorizer{}
	router := newAuthRouter(t, validator, authorizer)

	req := httptest.NewRequest(http.MethodGet, "/offers", nil)
	req.Header.Set("Authorization", "bearer  the-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "u1" {
		t.Fatalf("expected 200 u1, got %d %q", rr.Code, rr.Body.String())
	}
	if validator.got != "the-token" {
		t.Fatalf("unexpected token passed: %q", validator.got)
	}
	if authorizer.caller != identity {
		t.Fatalf("expected authorizer to receive the identity")
	}
	if len(authorizer.required) != 1 || authorizer.required[0] != domain.PermOffersReadCompany {
		t.Fatalf("unexpected requirement: %v", authorizer.required)
	}
}

func TestRequirePermissionMapsDecisions(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: usecase.ErrForbidden, want: http.StatusForbidden},
		{err: usecase.ErrUnauthenticated, want: http.StatusUnauthorized},
		{err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		validator := &fakeValidator{identity: &domain.Identity{UserID: "u1"}}
		router := newAuthRouter(t, validator, &fakeAuthorizer{err: tc.err})

		req := httptest.NewRequest(http.MethodGet, "/offers", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
		if body := decodeEnvelope(t, rr); body.StatusCode != tc.want || body.CorrelationID == "" {
			t.Fatalf("%v: unexpected envelope %+v", tc.err, body)
		}
	}
}

func TestRequirePermissionPanicsOnUnknownOperation(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unregistered operation")
		}
	}()
	RequirePermission(&fakeAuthorizer{}, policy.NewRegistry(), "missing", nil)
}
