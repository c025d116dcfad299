// auth.go — JWT middleware для аутентификации и авторизации Delivery Module.
// Извлекает claims из Keycloak JWT, маппит группы IdP в роли
// (client / operator / admin) и помещает Principal в контекст запроса.
// Валидация подписи — через JWKS Keycloak с фоновым обновлением ключей.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
	"github.com/bigkaa/gomediastore/internal/domain/rbac"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyPrincipal — аутентифицированный субъект в контексте запроса.
	ContextKeyPrincipal contextKey = "principal"
)

// Principal — аутентифицированный субъект запроса.
// Помещается в контекст для downstream handlers.
type Principal struct {
	// Subject — sub из JWT (Keycloak user ID).
	Subject string
	// PreferredUsername — preferred_username из JWT.
	PreferredUsername string
	// Email — email из JWT.
	Email string
	// Groups — группы из JWT.
	Groups []string
	// Role — роль, вычисленная из групп IdP (admin, operator, client, "").
	Role string
}

// DisplayName возвращает имя субъекта для записи в аудит и аннотации.
func (p *Principal) DisplayName() string {
	if p.PreferredUsername != "" {
		return p.PreferredUsername
	}
	return p.Subject
}

// JWTAuth — middleware для JWT-аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks           keyfunc.Keyfunc
	logger         *slog.Logger
	issuer         string
	groupsClaim    string
	adminGroups    []string
	operatorGroups []string
	clientGroups   []string
}

// JWTAuthOptions — параметры создания JWT middleware.
type JWTAuthOptions struct {
	// JWKSURL — URL к JWKS endpoint Keycloak.
	JWKSURL string
	// Issuer — ожидаемый issuer JWT (пустой — issuer не проверяется).
	Issuer string
	// GroupsClaim — имя claim с группами пользователя.
	GroupsClaim string
	// AdminGroups, OperatorGroups, ClientGroups — группы для маппинга в роли.
	AdminGroups    []string
	OperatorGroups []string
	ClientGroups   []string
	// RefreshInterval — интервал обновления JWKS-ключей.
	RefreshInterval time.Duration
	// ClientTimeout — таймаут HTTP-клиента JWKS.
	ClientTimeout time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из Keycloak.
func NewJWTAuth(opts JWTAuthOptions, logger *slog.Logger) (*JWTAuth, error) {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Hour
	}
	if opts.ClientTimeout <= 0 {
		opts.ClientTimeout = 10 * time.Second
	}
	if opts.GroupsClaim == "" {
		opts.GroupsClaim = "groups"
	}

	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: opts.ClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           opts.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", opts.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:           k,
		logger:         logger.With(slog.String("component", "jwt_auth")),
		issuer:         opts.Issuer,
		groupsClaim:    opts.GroupsClaim,
		adminGroups:    opts.AdminGroups,
		operatorGroups: opts.OperatorGroups,
		clientGroups:   opts.ClientGroups,
	}, nil
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), извлекает claims,
// вычисляет роль из групп и помещает Principal в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			// Парсинг и валидация JWT через JWKS
			rawClaims := jwt.MapClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				if err != nil {
					j.logger.Debug("JWT валидация не пройдена",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			principal := j.buildPrincipal(subject, rawClaims)

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает Bearer token из заголовка Authorization.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// buildPrincipal формирует Principal из raw claims: извлекает группы
// из настраиваемого claim и маппит их в роль.
func (j *JWTAuth) buildPrincipal(subject string, raw jwt.MapClaims) *Principal {
	p := &Principal{
		Subject:           subject,
		PreferredUsername: stringClaim(raw, "preferred_username"),
		Email:             stringClaim(raw, "email"),
		Groups:            stringSliceClaim(raw, j.groupsClaim),
	}
	p.Role = rbac.MapGroupsToRole(p.Groups, j.adminGroups, j.operatorGroups, j.clientGroups)
	return p
}

// stringClaim извлекает строковый claim; отсутствующий claim — пустая строка.
func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

// stringSliceClaim извлекает claim-массив строк.
// Keycloak сериализует группы как []interface{} — приводим поэлементно.
func stringSliceClaim(claims jwt.MapClaims, name string) []string {
	raw, ok := claims[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- RBAC middleware helpers ---

// RequireRole возвращает middleware, пропускающий субъектов с ролью
// не ниже required. Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				apierrors.Unauthorized(w, "Отсутствует Principal в контексте")
				return
			}

			if !rbac.AtLeast(principal.Role, required) {
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", required))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// PrincipalFromContext извлекает Principal из контекста запроса.
// Возвращает nil, если Principal не найден.
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(ContextKeyPrincipal).(*Principal)
	return principal
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если Principal не найден.
func SubjectFromContext(ctx context.Context) string {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return ""
	}
	return principal.Subject
}

// Close освобождает ресурсы JWT middleware.
func (j *JWTAuth) Close() {
	// keyfunc v3 не требует явного закрытия
}
