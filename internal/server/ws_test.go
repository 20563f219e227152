package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// dialWS connects a test WebSocket client.
func dialWS(url string) (*websocket.Conn, *http.Response, error) {
	return websocket.DefaultDialer.Dial(url, nil)
}
