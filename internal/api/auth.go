package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"carwash/internal/config"
	"carwash/internal/domain"
	"carwash/internal/notify"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	permAdmin           = "admin"
	permWatchBookings   = "watch:bookings"
	clientKeyUnknown    = "unknown"
)

var (
	errMissingCredentials = errors.New("authentication required")
	errInvalidAPIKey      = errors.New("invalid api key")
	errPermissionDenied   = errors.New("permission denied")
	errRateLimited        = errors.New("rate limit exceeded")
)

func headerName(cfg config.APIAuthConfig) string {
	h := strings.ToLower(strings.TrimSpace(cfg.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

func indexKeys(keys []config.APIClientKey) map[string]config.APIClientKey {
	m := make(map[string]config.APIClientKey, len(keys))
	for _, k := range keys {
		m[k.Key] = k
	}
	return m
}

// lookupKey compares against every configured key in constant time.
func lookupKey(clients map[string]config.APIClientKey, key string) (config.APIClientKey, bool) {
	var found config.APIClientKey
	ok := false
	for k, c := range clients {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			found, ok = c, true
		}
	}
	return found, ok
}

// hasPermission treats an empty permission list as allow-all.
func hasPermission(client config.APIClientKey, required string) bool {
	if len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

// HTTPAuth guards admin actions with a bearer session token or an API key
// and rate limits every client.
type HTTPAuth struct {
	cfg     config.APIConfig
	tokens  domain.AuthService
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig, tokens domain.AuthService) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		tokens:  tokens,
		clients: indexKeys(cfg.Auth.APIKeys),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// Authorize admits a request to an admin action. It is a no-op when auth
// is disabled.
func (a *HTTPAuth) Authorize(r *http.Request) error {
	if !a.cfg.Auth.Enabled {
		return nil
	}

	if apiKey := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth))); apiKey != "" {
		client, ok := lookupKey(a.clients, apiKey)
		if !ok {
			return errInvalidAPIKey
		}
		if !hasPermission(client, permAdmin) {
			return errPermissionDenied
		}
		return nil
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return errMissingCredentials
	}
	if a.tokens == nil {
		return errMissingCredentials
	}
	if _, err := a.tokens.ValidateToken(token); err != nil {
		return err
	}
	return nil
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}

func authStatus(err error) int {
	if errors.Is(err, errPermissionDenied) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// RateLimit rejects clients above the configured rate with 429.
func (a *HTTPAuth) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.allow(a.clientKey(r)) {
			writeEnvelope(w, http.StatusTooManyRequests, envelope{Message: errRateLimited.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth))); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// AuthInterceptor checks API keys and rate limits gRPC calls.
type AuthInterceptor struct {
	cfg *config.APIConfig

	clientsByAPIKey map[string]config.APIClientKey
	limiter         *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:             cfg,
		clientsByAPIKey: indexKeys(cfg.Auth.APIKeys),
		limiter:         newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := a.check(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := a.check(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (a *AuthInterceptor) check(ctx context.Context, fullMethod string) error {
	if a.cfg.Auth.Enabled {
		if err := a.checkAuth(ctx, fullMethod); err != nil {
			return err
		}
	}
	return a.checkRateLimit(ctx)
}

func (a *AuthInterceptor) checkAuth(ctx context.Context, fullMethod string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	apiKey := first(md.Get(headerName(a.cfg.Auth)))
	if apiKey == "" {
		return status.Error(codes.Unauthenticated, "missing api key header")
	}

	client, ok := lookupKey(a.clientsByAPIKey, apiKey)
	if !ok {
		return status.Error(codes.Unauthenticated, errInvalidAPIKey.Error())
	}

	if required := requiredPermission(fullMethod); required != "" && !hasPermission(client, required) {
		return status.Error(codes.PermissionDenied, errPermissionDenied.Error())
	}
	return nil
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case notify.WatchBookingsMethod:
		return permWatchBookings
	default:
		return ""
	}
}

func (a *AuthInterceptor) checkRateLimit(ctx context.Context) error {
	if !a.limiter.allow(a.clientKey(ctx)) {
		return status.Error(codes.ResourceExhausted, errRateLimited.Error())
	}
	return nil
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(headerName(a.cfg.Auth))); apiKey != "" {
		return apiKey
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
