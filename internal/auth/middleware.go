package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Roles, highest first
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
	RoleViewer     = "viewer"
)

type Claims struct {
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Groups    []string `json:"groups"`
	Extension string   `json:"extension"` // agent key the user may act for
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

// Options selects how tokens are verified. JWKSURL wins over Secret;
// Disabled injects a local admin and skips verification entirely.
type Options struct {
	Disabled bool
	JWKSURL  string
	Secret   string
	Issuer   string
}

// Authenticator validates bearer tokens and puts Claims into the request context
type Authenticator struct {
	opts    Options
	keyfunc jwt.Keyfunc
	logger  zerolog.Logger
}

// New creates an authenticator. With a JWKS URL the key set is fetched now
// and refreshed in the background by keyfunc.
func New(opts Options, logger zerolog.Logger) (*Authenticator, error) {
	a := &Authenticator{
		opts:   opts,
		logger: logger.With().Str("component", "auth").Logger(),
	}

	switch {
	case opts.Disabled:
		a.logger.Warn().Msg("authentication disabled, every request runs as admin")
	case opts.JWKSURL != "":
		k, err := keyfunc.NewDefault([]string{opts.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create keyfunc: %w", err)
		}
		a.keyfunc = k.Keyfunc
		a.logger.Info().Str("jwks_url", opts.JWKSURL).Msg("JWKS loaded")
	case opts.Secret != "":
		secret := []byte(opts.Secret)
		a.keyfunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
	default:
		return nil, fmt.Errorf("no token verification configured: set JWKS_URL or JWT_SECRET, or AUTH_DISABLED=true")
	}
	return a, nil
}

// Middleware validates JWT tokens
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health check and scraping
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		if a.opts.Disabled {
			ctx := WithUser(r.Context(), &Claims{
				Email: "dev@callctl.local",
				Name:  "Dev User",
				Role:  RoleAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Extract token from Authorization header or query parameter
		tokenString := extractToken(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}

		claims, err := a.validateToken(tokenString)
		if err != nil {
			a.logger.Warn().Err(err).Msg("token validation failed")
			http.Error(w, fmt.Sprintf("Unauthorized: %v", err), http.StatusUnauthorized)
			return
		}

		a.logger.Debug().Str("email", claims.Email).Str("role", claims.Role).Msg("user authenticated")

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
	})
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// Try query parameter (for WebSocket connections)
	return r.URL.Query().Get("token")
}

func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if a.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.opts.Issuer))
	}
	if a.opts.JWKSURL != "" {
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}))
	} else {
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	}

	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, mapClaims, a.keyfunc, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims := &Claims{}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}
	if ext, ok := mapClaims["extension"].(string); ok {
		claims.Extension = ext
	}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	claims.Role = extractRoleFromMapClaims(mapClaims)
	claims.Groups = extractGroupsFromMapClaims(mapClaims)
	return claims, nil
}

// extractRoleFromMapClaims extracts role from various possible token claim locations
func extractRoleFromMapClaims(mapClaims jwt.MapClaims) string {
	if role, ok := mapClaims["role"].(string); ok && rank(role) > 0 {
		return role
	}

	// Check realm_access.roles (Keycloak)
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realmAccess["roles"].([]interface{}); ok {
			for _, priority := range []string{RoleAdmin, RoleSupervisor, RoleAgent, RoleViewer} {
				for _, role := range roles {
					if roleStr, ok := role.(string); ok && roleStr == priority {
						return roleStr
					}
				}
			}
		}
	}

	// Check cognito:groups (AWS Cognito)
	if cognitoGroups, ok := mapClaims["cognito:groups"].([]interface{}); ok {
		for _, group := range cognitoGroups {
			if groupStr, ok := group.(string); ok {
				for _, role := range []string{RoleAdmin, RoleSupervisor, RoleAgent} {
					if strings.Contains(groupStr, role) {
						return role
					}
				}
			}
		}
	}

	return RoleViewer
}

// extractGroupsFromMapClaims extracts groups from token claims
func extractGroupsFromMapClaims(mapClaims jwt.MapClaims) []string {
	var groups []string
	for _, key := range []string{"groups", "cognito:groups"} {
		if claim, ok := mapClaims[key].([]interface{}); ok {
			for _, group := range claim {
				if groupStr, ok := group.(string); ok {
					groups = append(groups, groupStr)
				}
			}
		}
	}
	return groups
}

// WithUser returns ctx carrying claims
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

func rank(role string) int {
	switch role {
	case RoleAdmin:
		return 4
	case RoleSupervisor:
		return 3
	case RoleAgent:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// HasRole reports whether the user holds at least role
func HasRole(claims *Claims, role string) bool {
	return claims != nil && rank(claims.Role) >= rank(role)
}

// CanActFor reports whether the user may change agent's state.
// Supervisors act for anyone; agents only for their own extension.
func (c *Claims) CanActFor(agent string) bool {
	if HasRole(c, RoleSupervisor) {
		return true
	}
	return c != nil && c.Role == RoleAgent && c.Extension != "" && c.Extension == agent
}

// RequireRole rejects requests whose user ranks below role
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := GetUserFromContext(r.Context())
			if !HasRole(claims, role) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSupervisor admits supervisors and admins
func RequireSupervisor(next http.Handler) http.Handler {
	return RequireRole(RoleSupervisor)(next)
}

// RequireAdmin admits admins only
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin)(next)
}
