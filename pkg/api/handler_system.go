package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// statsHandler handles GET /api/v1/system/stats.
func (s *Server) statsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.coll.CollectStats())
}
