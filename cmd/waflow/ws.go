package main

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const eventWriteTimeout = 5 * time.Second

// handleEventFeed streams governor events to a websocket client until
// it disconnects. Slow clients drop events rather than stalling the
// publishers.
func (s *Server) handleEventFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Warn("Websocket accept failed")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		events, cancel := s.deps.Hub.Subscribe()
		defer cancel()

		s.logger.WithField("remote", r.RemoteAddr).Info("Event feed subscriber connected")

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				writeCtx, cancelWrite := context.WithTimeout(ctx, eventWriteTimeout)
				err := wsjson.Write(writeCtx, conn, ev)
				cancelWrite()
				if err != nil {
					s.logger.WithError(err).Debug("Event feed subscriber gone")
					return
				}
			}
		}
	}
}
