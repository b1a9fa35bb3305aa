package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hdu-care/hdu-service/internal/respond"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const principalKey ctxKey = "auth_principal"

// LegacyTokenHeader is still sent by older clients.
const LegacyTokenHeader = "x-auth-token"

var tracer = otel.Tracer("github.com/hdu-care/hdu-service/auth")

// MetricsRecorder interface for recording auth metrics
type MetricsRecorder interface {
	RecordAuthFailure(ctx context.Context, reason string)
}

// StatusChecker reports whether a user account is still approved.
type StatusChecker interface {
	IsApproved(ctx context.Context, userID string) (bool, error)
}

// Middleware validates token, injects Principal into request context.
func Middleware(ver *Verifier) func(http.Handler) http.Handler {
	return MiddlewareWithMetrics(ver, nil, nil)
}

// MiddlewareWithMetrics validates the token, optionally re-checks that the
// account is still approved, and records failures.
func MiddlewareWithMetrics(ver *Verifier, status StatusChecker, metrics MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "auth.Middleware",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			fail := func(reason, message string) {
				span.SetStatus(codes.Error, message)
				span.SetAttributes(attribute.String("error.type", reason))
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, reason)
				}
				respond.Error(w, http.StatusUnauthorized, "unauthorized", message)
			}

			tok, ok := tokenFromRequest(r)
			if !ok {
				fail("missing_authorization", "No token, authorization denied")
				return
			}

			pr, err := ver.ParseAndVerifyToken(tok)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				if err == ErrExpiredToken {
					fail("expired_token", "Token has expired")
					return
				}
				fail("invalid_token", "Token is not valid")
				return
			}

			if status != nil {
				approved, err := status.IsApproved(ctx, pr.UserID)
				if err != nil {
					log.Error().Err(err).Str("user_id", pr.UserID).Msg("failed to check account status")
					span.SetStatus(codes.Error, "status check failed")
					respond.Error(w, http.StatusInternalServerError, "server_error", "Failed to verify account status")
					return
				}
				if !approved {
					span.SetStatus(codes.Error, "account not approved")
					if metrics != nil {
						metrics.RecordAuthFailure(ctx, "account_not_approved")
					}
					respond.Error(w, http.StatusForbidden, "account_not_approved", "Your account is not approved. Please contact an administrator.")
					return
				}
			}

			span.SetAttributes(
				attribute.String("user.id", pr.UserID),
				attribute.String("user.role", pr.Role),
			)
			span.SetStatus(codes.Ok, "authentication successful")

			ctx = context.WithValue(ctx, principalKey, pr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest reads "Authorization: Bearer <jwt>" or the legacy header.
func tokenFromRequest(r *http.Request) (string, bool) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if tok := strings.TrimSpace(r.Header.Get(LegacyTokenHeader)); tok != "" {
		return tok, true
	}
	return "", false
}

// PermissionMetricsRecorder interface for recording permission check metrics
type PermissionMetricsRecorder interface {
	RecordPermissionCheck(ctx context.Context, permission string, durationMs float64, allowed bool)
}

// ForbiddenResponse is returned when the caller's role lacks a permission.
type ForbiddenResponse struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	Message       string   `json:"message"`
	Role          string   `json:"role"`
	RequiredRoles []string `json:"requiredRoles"`
}

// RequirePermission returns middleware that ensures the principal has permission.
func RequirePermission(per string, perms Permissions) func(http.Handler) http.Handler {
	return RequirePermissionWithMetrics(per, perms, nil)
}

// RequirePermissionWithMetrics returns middleware with metrics recording
func RequirePermissionWithMetrics(per string, perms Permissions, metrics PermissionMetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), "auth.RequirePermission",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attribute.String("permission.required", per)),
			)
			defer span.End()

			pr, ok := FromContext(ctx)
			if !ok {
				span.SetStatus(codes.Error, "unauthenticated")
				if metrics != nil {
					metrics.RecordPermissionCheck(ctx, per, float64(time.Since(start).Milliseconds()), false)
				}
				respond.Error(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
				return
			}

			allowed := perms.Allows(pr.Role, per)
			span.SetAttributes(
				attribute.Bool("permission.allowed", allowed),
				attribute.String("user.id", pr.UserID),
				attribute.String("user.role", pr.Role),
			)
			if metrics != nil {
				metrics.RecordPermissionCheck(ctx, per, float64(time.Since(start).Milliseconds()), allowed)
			}

			if !allowed {
				log.Warn().
					Str("user_id", pr.UserID).
					Str("role", pr.Role).
					Str("permission", per).
					Msg("permission denied")
				span.SetStatus(codes.Error, "forbidden")
				respond.JSON(w, http.StatusForbidden, ForbiddenResponse{
					Success:       false,
					Error:         "forbidden",
					Message:       "Access denied. Insufficient permissions.",
					Role:          pr.Role,
					RequiredRoles: perms.RolesWith(per),
				})
				return
			}

			span.SetStatus(codes.Ok, "permission granted")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts Principal from context.
func FromContext(ctx context.Context) (*Principal, bool) {
	pr, ok := ctx.Value(principalKey).(*Principal)
	return pr, ok
}
