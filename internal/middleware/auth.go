package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/logging"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

// Context keys set by the auth middlewares.
const (
	ClaimsKey = "claims"
	UserIDKey = "userId"
	RoleKey   = "role"
)

var (
	errMissingToken = errors.New("missing token")
	errTokenFormat  = errors.New("invalid token format")
	errTokenClaims  = errors.New("invalid token claims")
)

// Identity is what a verified access token says about the caller.
type Identity struct {
	UserID primitive.ObjectID
	Email  string
	Role   string
	Claims jwt.MapClaims
}

// ParseBearer verifies an "Authorization: Bearer <jwt>" header value.
func ParseBearer(header, secret string) (Identity, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return Identity{}, errMissingToken
	}
	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Identity{}, errTokenFormat
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		if err == nil {
			err = errTokenClaims
		}
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errTokenClaims
	}
	userIDValue, _ := claims["userId"].(string)
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(userIDValue))
	if err != nil {
		return Identity{}, errTokenClaims
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleUser
	}
	return Identity{UserID: userID, Email: email, Role: role, Claims: claims}, nil
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(ClaimsKey, id.Claims)
	c.Set(UserIDKey, id.UserID)
	c.Set(RoleKey, id.Role)
}

// AuthGuard rejects requests without a valid access token. When roles are
// given the token's role must be one of them.
func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logging.FromContext(c.Request.Context(), nil).Named("auth")

		id, err := ParseBearer(c.GetHeader("Authorization"), secret)
		if err != nil {
			log.Info("token rejected", zap.Error(err))
			message := "Token inválido o expirado"
			if errors.Is(err, errMissingToken) {
				message = "Token de autenticación requerido"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message})
			return
		}

		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if id.Role == r {
					match = true
					break
				}
			}
			if !match {
				log.Warn("role not allowed", zap.String("userId", id.UserID.Hex()), zap.String("role", id.Role))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Acceso denegado"})
				return
			}
		}

		setIdentity(c, id)
		c.Next()
	}
}

func RequireAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret)
}

func AdminAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, models.RoleAdmin)
}

// UserID returns the authenticated caller, if any.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok && !id.IsZero()
}
