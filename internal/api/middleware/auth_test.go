package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/gomediastore/internal/domain/rbac"
)

func testJWTAuth() *JWTAuth {
	return &JWTAuth{
		logger:         slog.Default(),
		groupsClaim:    "groups",
		adminGroups:    []string{"mediastore-admins"},
		operatorGroups: []string{"mediastore-operators"},
		clientGroups:   []string{"mediastore-clients"},
	}
}

func TestBuildPrincipal(t *testing.T) {
	tests := []struct {
		name     string
		claims   jwt.MapClaims
		wantRole string
		wantName string
	}{
		{
			name: "оператор из группы IdP",
			claims: jwt.MapClaims{
				"preferred_username": "olga",
				"groups":             []interface{}{"mediastore-operators"},
			},
			wantRole: rbac.RoleOperator,
			wantName: "olga",
		},
		{
			name: "максимальная роль из нескольких групп",
			claims: jwt.MapClaims{
				"groups": []interface{}{"mediastore-clients", "mediastore-admins"},
			},
			wantRole: rbac.RoleAdmin,
			wantName: "user-1",
		},
		{
			name:     "без групп — роль пустая",
			claims:   jwt.MapClaims{},
			wantRole: "",
			wantName: "user-1",
		},
		{
			name: "нестроковые элементы групп игнорируются",
			claims: jwt.MapClaims{
				"groups": []interface{}{42, "mediastore-clients"},
			},
			wantRole: rbac.RoleClient,
			wantName: "user-1",
		},
	}

	j := testJWTAuth()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := j.buildPrincipal("user-1", tt.claims)
			if p.Role != tt.wantRole {
				t.Errorf("ожидалась роль %q, получена %q", tt.wantRole, p.Role)
			}
			if p.DisplayName() != tt.wantName {
				t.Errorf("ожидалось имя %q, получено %q", tt.wantName, p.DisplayName())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"корректный Bearer", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"регистр схемы не важен", "bearer abc", "abc", true},
		{"отсутствует заголовок", "", "", false},
		{"не Bearer схема", "Basic dXNlcjpwYXNz", "", false},
		{"пустой токен", "Bearer ", "", false},
		{"без пробела", "Bearerabc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(r)
			if ok != tt.ok {
				t.Fatalf("ожидается ok=%v, получено %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("ожидался токен %q, получен %q", tt.want, got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		principal  *Principal
		required   string
		wantStatus int
	}{
		{"роль совпадает", &Principal{Role: rbac.RoleOperator}, rbac.RoleOperator, http.StatusOK},
		{"роль выше требуемой", &Principal{Role: rbac.RoleAdmin}, rbac.RoleClient, http.StatusOK},
		{"роль ниже требуемой", &Principal{Role: rbac.RoleClient}, rbac.RoleOperator, http.StatusForbidden},
		{"пустая роль", &Principal{}, rbac.RoleClient, http.StatusForbidden},
		{"нет Principal в контексте", nil, rbac.RoleClient, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(tt.required)(next)

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				ctx := context.WithValue(r.Context(), ContextKeyPrincipal, tt.principal)
				r = r.WithContext(ctx)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			if rec.Code != tt.wantStatus {
				t.Errorf("ожидался статус %d, получен %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestSubjectFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ContextKeyPrincipal, &Principal{Subject: "abc"})
	if got := SubjectFromContext(ctx); got != "abc" {
		t.Errorf("ожидался subject abc, получен %q", got)
	}
	if got := SubjectFromContext(context.Background()); got != "" {
		t.Errorf("ожидалась пустая строка без Principal, получено %q", got)
	}
}
