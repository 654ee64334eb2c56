package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StateStreamHandler subscribes the client to output state changes. Every
// applied action arrives as one JSON StatePayload.
func StateStreamHandler(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer c.Close()

	ENV.Conductor.Subscribe(c)
	defer ENV.Conductor.Unsubscribe(c)

	// clients only listen; drain reads until the peer goes away
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
