package handlers

import (
	"net/http"

	gws "github.com/gorilla/websocket"

	"videoserver/internal/logger"
	"videoserver/internal/services/websocket"
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressHandler upgrades the connection and registers it with the hub so
// the browser receives stage events while its upload is processing. The read
// loop only exists to detect the client going away.
func ProgressHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("Websocket upgrade error: %v", err)
			return
		}

		hub.Register(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Unregister(conn)
				break
			}
		}
	}
}
