package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/bridge"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/session"
	apperrors "github.com/acme/direct-calling/pkg/errors"
	"github.com/acme/direct-calling/pkg/logger"
)

// conn is one attached front-end. It is the dispatcher's host for its device.
type conn struct {
	deviceID     string
	ws           *websocket.Conn
	registry     *session.Registry
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
}

func newConn(ctx context.Context, deviceID string, ws *websocket.Conn, registry *session.Registry, writeTimeout, pingInterval time.Duration, lg *logger.Logger) *conn {
	ctx, cancel := context.WithCancel(ctx)
	return &conn{
		deviceID:     deviceID,
		ws:           ws,
		registry:     registry,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       lg,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *conn) DeviceID() string { return c.deviceID }

// Prompt asks the front-end to show the permission dialog.
func (c *conn) Prompt(_ context.Context, req dialer.PromptRequest) error {
	return c.write(promptFrame{Type: FramePermissionPrompt, PromptRequest: req})
}

func (c *conn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

// serve runs until the peer goes away.
func (c *conn) serve() {
	defer c.cancel()

	pongWait := 2 * c.pingInterval
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.pinger()

	for {
		var frame inboundFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws: read", zap.String("device_id", c.deviceID), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(frame)
	}
}

func (c *conn) pinger() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *conn) handle(frame inboundFrame) {
	switch frame.Type {
	case FrameInvoke:
		c.invoke(frame)
	case FramePermissionResult:
		ack := c.registry.HandlePermissionResult(c.ctx, c.deviceID, frame.RequestCode, frame.Granted)
		c.send(ackFrame{Type: FramePermissionAck, PermissionAck: ack})
	default:
		c.send(errorFrame{Type: FrameError, ID: frame.ID, Message: fmt.Sprintf("unknown frame type %q", frame.Type)})
	}
}

func (c *conn) invoke(frame inboundFrame) {
	ticket, err := c.registry.Invoke(c.ctx, c.deviceID, bridge.MethodCall{Method: frame.Method, Arguments: frame.Arguments})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotImplemented) {
			c.send(replyFrame{Type: FrameReply, ID: frame.ID, Reply: bridge.NotImplemented()})
			return
		}
		c.send(errorFrame{Type: FrameError, ID: frame.ID, Message: err.Error()})
		return
	}

	if reply, ok := bridge.ReplyFor(ticket); ok {
		c.send(replyFrame{Type: FrameReply, ID: frame.ID, Reply: reply})
		return
	}
	go c.replyWhenDone(frame.ID, ticket)
}

func (c *conn) replyWhenDone(id string, ticket *dialer.Ticket) {
	select {
	case <-ticket.Done():
	case <-c.ctx.Done():
		return
	}
	reply, _ := bridge.ReplyFor(ticket)
	c.send(replyFrame{Type: FrameReply, ID: id, Reply: reply})
}

func (c *conn) send(v any) {
	if err := c.write(v); err != nil {
		c.logger.Debug("ws: send", zap.String("device_id", c.deviceID), zap.Error(err))
	}
}
