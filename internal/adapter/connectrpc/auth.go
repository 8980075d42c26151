package connectrpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/eslsoft/deeplisten/api/backup/v1/backupv1connect"
)

type userIDKey struct{}

var errNoCaller = errors.New("missing " + backupv1connect.UserIDHeader + " header")

// WithUserID stores the authenticated caller in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom returns the caller stored by the auth interceptor.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// NewAuthInterceptor resolves the caller from the identity header set by the
// fronting gateway. Requests without it are rejected as unauthenticated.
func NewAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				return next(ctx, req)
			}
			userID := strings.TrimSpace(req.Header().Get(backupv1connect.UserIDHeader))
			if userID == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errNoCaller)
			}
			return next(WithUserID(ctx, userID), req)
		}
	}
}

// RequireUserID is the plain-HTTP counterpart of NewAuthInterceptor.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(backupv1connect.UserIDHeader))
		if userID == "" {
			http.Error(w, errNoCaller.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
