package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/catalog"
)

// parsePaginationParams reads page/limit with the catalog defaults and answers
// 400 on bad input.
func parsePaginationParams(c *gin.Context, route string) (int64, int64, bool) {
	page, limit, err := catalog.ParsePagination(c.Query("page"), c.Query("limit"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "Parámetros de paginación inválidos")
		return 0, 0, false
	}
	return page, limit, true
}
