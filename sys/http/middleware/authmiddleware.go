package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"cleanbuddy-dispatch/res/auth"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/dispatch"

	"github.com/gorilla/websocket"
)

// SESSION USER GETTER

type contextKey string

var contextKeyCurrentUser = contextKey("currentUser")

func GetCurrentUser(ctx context.Context) *store.User {
	if val := ctx.Value(contextKeyCurrentUser); val != nil {
		if currentUser, ok := val.(*store.User); ok {
			return currentUser
		}
	}

	return nil
}

// GetCurrentActor returns the dispatch actor of the authenticated user
func GetCurrentActor(ctx context.Context) (dispatch.Actor, bool) {
	currentUser := GetCurrentUser(ctx)
	if currentUser == nil {
		return dispatch.Actor{}, false
	}
	return dispatch.ActorFromUser(currentUser), true
}

// WithCurrentUser stores the user the way AuthMiddleware does
func WithCurrentUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, contextKeyCurrentUser, user)
}

// AUTH MIDDLEWARE

const authForbiddenCode = "FORBIDDEN"

// AuthMiddleware resolves a bearer access token to its user. Requests without an
// Authorization header pass through anonymously; handlers decide whether that is enough.
func AuthMiddleware(logger *log.Logger, storeImpl store.Store, authImpl auth.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headerVal := r.Header.Get("Authorization")

			// Browsers cannot set headers on a websocket handshake
			if headerVal == "" && websocket.IsWebSocketUpgrade(r) {
				if token := r.URL.Query().Get("access_token"); token != "" {
					headerVal = "Bearer " + token
				}
			}

			if len(headerVal) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			headerValParts := strings.Split(headerVal, " ")
			if len(headerValParts) != 2 || !strings.EqualFold(headerValParts[0], "Bearer") {
				forbid(logger, w, "Malformed Authorization header")
				return
			}

			claims, err := authImpl.ValidateAccessToken(headerValParts[1])
			if err != nil {
				forbid(logger, w, "Invalid Authorization header")
				return
			}

			currentUser, err := storeImpl.Users().Get(r.Context(), claims.UserID)
			if err != nil || currentUser == nil {
				forbid(logger, w, "Invalid Authorization header")
				return
			}
			if claims.TenantID != "" && claims.TenantID != currentUser.TenantID {
				forbid(logger, w, "Invalid Authorization header")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCurrentUser(r.Context(), currentUser)))
		})
	}
}

func forbid(logger *log.Logger, w http.ResponseWriter, message string) {
	if err := EmitErrorResponse(w, http.StatusUnauthorized, authForbiddenCode, message); err != nil {
		logger.Printf("Error serializing error response: %s", err)
	}
}
