package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/rut"
)

type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Nombre   string `json:"nombre"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required,min=6"`
	RUT      string `json:"rut" binding:"omitempty,rut"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	RUT   string `json:"rut,omitempty"`
	Role  string `json:"role"`
}

func newUserResponse(u models.User) userResponse {
	out := userResponse{ID: u.ID.Hex(), Email: u.Email, Name: u.Name, Role: u.Role}
	if u.RUT != "" {
		out.RUT = rut.Format(u.RUT)
	}
	return out
}

func Register(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/register"
		defer handlePanic(c, route)
		log := requestLogger(c, "auth")

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		name := strings.TrimSpace(req.Nombre)
		if name == "" {
			name = strings.TrimSpace(req.Name)
		}
		if name == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Datos inválidos", "details": []string{"nombre es requerido"}})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		users := db.Collection(database.Users)

		count, err := users.CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if count > 0 {
			log.Info("register email exists", zap.String("email", email))
			respondWithError(c, http.StatusConflict, route, "El email ya está registrado")
			return
		}

		cleanRUT := ""
		if strings.TrimSpace(req.RUT) != "" {
			cleanRUT, _ = rut.Normalize(req.RUT)
			taken, err := users.CountDocuments(ctx, bson.M{"rut": cleanRUT})
			if err != nil {
				respondInternal(c, route, err)
				return
			}
			if taken > 0 {
				respondWithError(c, http.StatusConflict, route, "El RUT ya está registrado")
				return
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		total, err := users.EstimatedDocumentCount(ctx)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		role := models.RoleUser
		if total == 0 {
			role = models.RoleAdmin
		}

		now := time.Now().UTC()
		user := models.User{
			Email:        email,
			PasswordHash: string(hash),
			Name:         name,
			RUT:          cleanRUT,
			Role:         role,
			Addresses:    []models.Address{},
			Favorites:    []primitive.ObjectID{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		res, err := users.InsertOne(ctx, user)
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "El email o RUT ya está registrado")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		user.ID, _ = res.InsertedID.(primitive.ObjectID)

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if role == models.RoleAdmin {
			log.Warn("first account registered as admin", zap.String("email", email))
		} else {
			log.Info("user registered", zap.String("email", email))
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":      "Usuario registrado exitosamente",
			"user":         newUserResponse(user),
			"accessToken":  issued.AccessToken,
			"refreshToken": issued.RefreshToken,
			"expiresIn":    issued.ExpiresIn,
		})
	}
}

func Login(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/login"
		defer handlePanic(c, route)
		log := requestLogger(c, "auth")

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		err := db.Collection(database.Users).FindOne(ctx, bson.M{"email": email}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Info("login unknown email")
			respondWithError(c, http.StatusUnauthorized, route, "Credenciales inválidas")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			log.Info("login wrong password", zap.String("userId", user.ID.Hex()))
			respondWithError(c, http.StatusUnauthorized, route, "Credenciales inválidas")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Info("login succeeded", zap.String("userId", user.ID.Hex()))
		c.JSON(http.StatusOK, gin.H{
			"message":      "Inicio de sesión exitoso",
			"user":         newUserResponse(user),
			"accessToken":  issued.AccessToken,
			"refreshToken": issued.RefreshToken,
			"expiresIn":    issued.ExpiresIn,
		})
	}
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued. A token can only be rotated once.
func Refresh(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		refreshTokens := db.Collection(database.RefreshTokens)

		var token models.RefreshToken
		err := refreshTokens.FindOne(ctx, bson.M{"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken))}).Decode(&token)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusUnauthorized, route, "Refresh token inválido")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		now := time.Now().UTC()
		if !token.Usable(now) {
			respondWithError(c, http.StatusUnauthorized, route, "Refresh token expirado o revocado")
			return
		}

		var user models.User
		if err := db.Collection(database.Users).FindOne(ctx, bson.M{"_id": token.UserID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "Usuario no encontrado")
			return
		}

		res, err := refreshTokens.UpdateOne(ctx,
			bson.M{"_id": token.ID, "revoked": false},
			bson.M{"$set": bson.M{"revoked": true, "revokedAt": now}},
		)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.ModifiedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, route, "Refresh token inválido")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		_, _ = refreshTokens.UpdateByID(ctx, token.ID, bson.M{"$set": bson.M{"replacedByToken": issued.RefreshTokenID}})

		c.JSON(http.StatusOK, gin.H{
			"user":         newUserResponse(user),
			"accessToken":  issued.AccessToken,
			"refreshToken": issued.RefreshToken,
			"expiresIn":    issued.ExpiresIn,
		})
	}
}

func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.RefreshTokens).UpdateOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}, bson.M{"$set": bson.M{"revoked": true, "revokedAt": time.Now().UTC()}})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, route, "Refresh token inválido")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Sesión cerrada"})
	}
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/auth/me"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		err := db.Collection(database.Users).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Usuario no encontrado")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":      newUserResponse(user),
			"addresses": user.Addresses,
			"createdAt": user.CreatedAt,
		})
	}
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func signAccessToken(user models.User, cfg TokenConfig, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": user.ID.Hex(),
		"email":  user.Email,
		"role":   user.Role,
		"iat":    now.Unix(),
		"exp":    now.Add(cfg.AccessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

func issueTokens(ctx context.Context, db *mongo.Database, user models.User, cfg TokenConfig) (*issuedTokens, error) {
	now := time.Now().UTC()
	accessToken, err := signAccessToken(user, cfg, now)
	if err != nil {
		return nil, err
	}

	plainRefresh := generateRefreshString()
	if plainRefresh == "" {
		return nil, errors.New("could not generate refresh token")
	}

	refresh := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(cfg.RefreshTTL),
		CreatedAt: now,
	}
	res, err := db.Collection(database.RefreshTokens).InsertOne(ctx, refresh)
	if err != nil {
		return nil, err
	}

	refreshID, _ := res.InsertedID.(primitive.ObjectID)
	return &issuedTokens{
		AccessToken:    accessToken,
		RefreshToken:   plainRefresh,
		RefreshTokenID: refreshID,
		ExpiresIn:      int64(cfg.AccessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
