package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondValidationErrorDetails(t *testing.T) {
	r := gin.New()
	r.POST("/contact", func(c *gin.Context) {
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := doJSON(t, r, http.MethodPost, "/contact", map[string]any{
		"nombre":  "Ana",
		"email":   "no-es-email",
		"mensaje": "hola",
		"rut":     "12.345.678-9",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "Datos inválidos", body["message"])
	assert.ElementsMatch(t, []any{"email debe ser un email válido", "rut no es un RUT válido"}, body["details"])

	w = doJSON(t, r, http.MethodPost, "/contact", map[string]any{
		"nombre":  "Ana",
		"email":   "ana@example.cl",
		"mensaje": "hola",
		"rut":     "12.345.678-5",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRespondValidationErrorMalformedJSON(t *testing.T) {
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var req newsletterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
		}
	})

	w := doJSON(t, r, http.MethodPost, "/x", "{")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cuerpo de la solicitud inválido", decodeBody(t, w)["message"])
}

func TestPathIDRejectsMalformedIDs(t *testing.T) {
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		if _, ok := pathID(c, "GET /items/:id", "id"); ok {
			c.Status(http.StatusNoContent)
		}
	})

	w := doJSON(t, r, http.MethodGet, "/items/abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ID inválido", decodeBody(t, w)["message"])

	w = doJSON(t, r, http.MethodGet, "/items/65a1b2c3d4e5f60718293a4b", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCurrentUserRequiresIdentity(t *testing.T) {
	r := gin.New()
	r.GET("/me", func(c *gin.Context) {
		if _, ok := currentUser(c, "GET /me"); ok {
			c.Status(http.StatusNoContent)
		}
	})

	w := doJSON(t, r, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No autenticado", decodeBody(t, w)["message"])
}
