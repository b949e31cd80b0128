package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/config"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/logging"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/middleware"
)

var errInvalidID = errors.New("invalid id")

func requestLogger(c *gin.Context, area string) *zap.Logger {
	return logging.FromContext(c.Request.Context(), nil).Named(area)
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		requestLogger(c, "panic").Error("panic recovered", zap.String("route", route), zap.Any("panic", r), zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Error interno del servidor"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	return database.Ping(ctx, db)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	requestLogger(c, "http").Info("returning error", zap.String("route", route), zap.Int("status", status), zap.String("message", message))
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// respondInternal logs err and answers 500. The error text is only exposed in
// development.
func respondInternal(c *gin.Context, route string, err error) {
	requestLogger(c, "http").Error("internal error", zap.String("route", route), zap.Error(err))
	body := gin.H{"message": "Error interno del servidor"}
	if config.AppEnv.IsDevelopment() && err != nil {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s es requerido", field))
			case "email":
				details = append(details, fmt.Sprintf("%s debe ser un email válido", field))
			case "rut":
				details = append(details, fmt.Sprintf("%s no es un RUT válido", field))
			case "min":
				details = append(details, fmt.Sprintf("%s debe tener al menos %s", field, fieldError.Param()))
			case "max":
				details = append(details, fmt.Sprintf("%s no puede superar %s", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s no es válido", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message": "Datos inválidos",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Cuerpo de la solicitud inválido", "details": []string{err.Error()}})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func parseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, errInvalidID
	}
	return id, nil
}

// pathID reads an ObjectID path parameter and answers 400 when malformed.
func pathID(c *gin.Context, route, param string) (primitive.ObjectID, bool) {
	id, err := parseObjectID(c.Param(param))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "ID inválido")
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUser reads the id AuthGuard stored; it answers 401 when absent.
func currentUser(c *gin.Context, route string) (primitive.ObjectID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, "No autenticado")
		return primitive.NilObjectID, false
	}
	return id, true
}
