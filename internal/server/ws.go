package server

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/binsight/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler forwards pipeline events to websocket clients. Each client
// gets its own bus subscription; a slow client drops events rather than
// stalling the pipeline.
type EventsHandler struct {
	bus *events.Bus
}

// NewEventsHandler creates an EventsHandler fed by the given bus.
func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// ServeHTTP upgrades the connection and streams events as JSON messages
// until the client disconnects or the bus closes.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id := "ws-" + uuid.NewString()
	ch := h.bus.Subscribe(id)
	defer h.bus.Unsubscribe(id)

	// Reads only serve to detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
