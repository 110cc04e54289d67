// Package eventsource implements the server side of the EventSource browser
// API on top of a hijacked HTTP connection.
package eventsource

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// reconnectDelay is the retry interval hinted to clients that lose the
// connection.
const reconnectDelay = 2 * time.Second

type EventSource struct {
	conn net.Conn
}

// Begin takes over the connection of an HTTP request and turns it into an
// event stream. The connection is closed when the request context ends.
func Begin(w http.ResponseWriter, r *http.Request) (*EventSource, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Transfer-Encoding", "identity")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, fmt.Errorf("could not start event source: connection is not hijackable")
	}
	conn, buf, err := hijacker.Hijack()
	if err != nil {
		return nil, fmt.Errorf("could not start event source: %v", err)
	}
	buf.Flush()

	go func() {
		<-r.Context().Done()
		conn.Close()
	}()

	fmt.Fprintf(conn, "retry: %d\n\n", reconnectDelay/time.Millisecond)
	return &EventSource{conn: conn}, nil
}

// Event sends a single named event to the client.
func (es *EventSource) Event(event, body string) {
	fmt.Fprintf(es.conn, "event: %s\n", event)
	if body != "" {
		fmt.Fprintf(es.conn, "data: %s\n\n", body)
	}
}

// EventJSON sends a single named event with a JSON-encoded body.
func (es *EventSource) EventJSON(event string, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		log.Errorf("Could not marshal event %q: %v", event, err)
		return
	}
	es.Event(event, string(b))
}
