package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// sdkHandler upgrades /sdk connections and hands them to the collector.
// Blocks until the socket closes.
func (s *Server) sdkHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Local-only server; origin checks would reject file:// and
		// extension origins the SDKs legitimately connect from.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.coll.HandleSDKConnection(c.Request().Context(), conn)
	return nil
}

// eventsHandler upgrades /events connections and subscribes them to the
// broadcast hub. Blocks until the subscriber disconnects or falls behind.
func (s *Server) eventsHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.coll.Hub().HandleConnection(c.Request().Context(), conn)
	return nil
}
