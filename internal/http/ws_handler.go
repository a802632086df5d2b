package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler serves the duplex API: every command frame is executed
// against b and answered on the same connection; Broadcast messages are
// interleaved by the writer.
func WebSocketHandler(b *Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn().Err(err).Msg("upgrade failed")
			return
		}
		defer c.Close()

		out := b.attach(func() { _ = c.Close() })
		defer b.detach(out)
		done := make(chan struct{})
		defer close(done)

		go func() {
			for {
				select {
				case <-done:
					return
				case raw := <-out:
					_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := c.WriteMessage(websocket.TextMessage, raw); err != nil {
						_ = c.Close()
						return
					}
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := wire.DecodeCommand(msg)
			if err != nil {
				b.logger.Debug().Err(err).Msg("ignoring message")
				continue
			}
			for _, reply := range b.Reply(cmd) {
				select {
				case out <- reply:
				case <-time.After(time.Second):
					b.logger.Warn().Str("kind", string(cmd.Kind)).Msg("reply dropped")
				}
			}
		}
	}
}
