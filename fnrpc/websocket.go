package fnrpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// PingContent is the content of the ping message we send out. This is
	// an arbitrary non-empty message that has no deeper meaning but should
	// be sent back by the client in the pong message.
	PingContent = "are you there?"
)

var (
	// DefaultPingInterval is the default number of seconds to wait between
	// sending ping requests.
	DefaultPingInterval = time.Second * 30

	// DefaultPongWait is the maximum duration we wait for a pong response
	// to a ping we sent before we assume the connection died.
	DefaultPongWait = time.Second * 5
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// pingPongEnabled returns true if a ping interval is set to enable sending and
// expecting regular ping/pong messages.
func (s *Server) pingPongEnabled() bool {
	return s.cfg.PingInterval > 0 && s.cfg.PongWait > 0
}

// serveWebSocket upgrades the request and answers every text message as a
// JSON-RPC payload until either side closes the connection. Responses are
// written in the order the requests arrived.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Error upgrading websocket: %v", err)
		return
	}
	defer func() {
		err := conn.Close()
		if err != nil && !IsClosedConnError(err) {
			log.Errorf("WS: error closing upgraded conn: %v", err)
		}
	}()

	log.Debugf("WS: connection from %v", r.RemoteAddr)

	conn.SetReadLimit(s.cfg.MaxRequestSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read deadline and pong handler belong to the reader, so they
	// are set before the read loop starts.
	if s.pingPongEnabled() {
		s.startPingLoop(ctx, conn)
	}

	// Read loop: the ping/pong handler only runs while a read is active,
	// so reading happens on its own goroutine while requests are served
	// below.
	payloads := make(chan []byte, 1)
	go func() {
		defer cancel()
		defer close(payloads)

		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				if IsClosedConnError(err) {
					log.Tracef("WS: socket closed: %v",
						err)
					return
				}
				log.Errorf("WS: error reading message: %v",
					err)
				return
			}
			if msgType != websocket.TextMessage {
				log.Debugf("WS: ignoring message type %d",
					msgType)
				continue
			}

			select {
			case payloads <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Write loop: this is the only goroutine writing data frames.
	for payload := range payloads {
		resp := s.handlePayload(ctx, payload)
		if resp == nil {
			continue
		}

		err := conn.WriteMessage(websocket.TextMessage, resp)
		if err != nil {
			if !IsClosedConnError(err) {
				log.Errorf("WS: error writing message: %v",
					err)
			}
			return
		}
	}
}

// startPingLoop sets the read deadline handling and sends a ping every ping
// interval until ctx is done.
func (s *Server) startPingLoop(ctx context.Context, conn *websocket.Conn) {
	deadline := s.cfg.PingInterval + s.cfg.PongWait

	// We'll send out our first ping in pingInterval. So the initial
	// deadline is that interval plus the time we allow for a response to
	// be sent.
	_ = conn.SetReadDeadline(time.Now().Add(deadline))

	// Whenever a pong message comes in, we extend the deadline until the
	// next read is expected by the interval plus pong wait time. Pings
	// carry their own write deadline.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	pingTicker := ticker.New(s.cfg.PingInterval)
	pingTicker.Resume()

	go func() {
		defer pingTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debug("WS: ping loop done")
				return

			case <-pingTicker.Ticks():
				// Writing the ping shouldn't take any longer
				// than we'll wait for a response in the first
				// place.
				err := conn.WriteControl(
					websocket.PingMessage,
					[]byte(PingContent),
					time.Now().Add(s.cfg.PongWait),
				)
				if err != nil {
					log.Warnf("WS: could not send ping "+
						"message: %v", err)
					return
				}
			}
		}
	}()
}

// IsClosedConnError is a helper function that returns true if the given error
// is an error indicating we are using a closed connection.
func IsClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, http.ErrServerClosed) {
		return true
	}

	str := err.Error()
	if strings.Contains(str, "use of closed network connection") {
		return true
	}
	if strings.Contains(str, "closed pipe") {
		return true
	}
	if strings.Contains(str, "broken pipe") {
		return true
	}
	if strings.Contains(str, "connection reset by peer") {
		return true
	}

	return websocket.IsCloseError(
		err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
	)
}
