package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/proto"
	"github.com/vovakirdan/huddle/internal/utils"
)

const writeTimeout = 10 * time.Second

var errSlowConsumer = errors.New("slow consumer")

// WSOptions bounds a single WebSocket session.
type WSOptions struct {
	OutboundBuffer     int
	MaxMessageBytes    int64
	RateLimitPerMinute int
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := core.NewClient(utils.NewID(), h.opts.OutboundBuffer)
	h.hub.Connect(ctx, client)
	defer h.hub.Disconnect(client)

	limiter := newRateLimiter(h.opts.RateLimitPerMinute, time.Minute)
	limiter.run(ctx)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case errors.Is(err, errSlowConsumer):
		status = websocket.StatusPolicyViolation
		reason = errSlowConsumer.Error()
		h.log.Warn().Str("conn_id", client.ID).Str("user_id", client.User()).Msg("closing slow consumer")
	case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF):
		if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
			break
		}
		status = websocket.StatusInternalError
		reason = "internal error"
		h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
	}

	_ = conn.Close(status, reason)
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, e *proto.Error) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: e})
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter) error {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			if err := h.writeError(ctx, conn, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(raw, &inbound); err != nil {
			if err := h.writeError(ctx, conn, badRequest("", "malformed envelope")); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("failed to map inbound")
			protoErr = badRequest(inbound.Type, "malformed data")
		}
		if protoErr != nil {
			if err := h.writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return errSlowConsumer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events():
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, outboundFromEvent(event, client))
			cancel()
			if err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			if client.Lagging() {
				return errSlowConsumer
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
