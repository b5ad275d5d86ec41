package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tutorlink/chat-server/internal/auth"
	"github.com/tutorlink/chat-server/internal/core"
	"github.com/tutorlink/chat-server/internal/proto"
	"github.com/tutorlink/chat-server/internal/service/chat"
)

// WSHandler upgrades HTTP connections and bridges them to the chat facade.
// One delivery handle per connection, registered into every room the
// client joins; the write loop multiplexes all of them onto the socket.
type WSHandler struct {
	svc       *chat.Service
	auth      *auth.Service
	sendLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *chat.Service, authService *auth.Service, sendLimit int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{svc: svc, auth: authService, sendLimit: sendLimit, log: logger}
}

// Handle serves GET /ws. Identity comes from a bearer token (query param
// or Authorization header), checked before the upgrade.
func (h *WSHandler) Handle(c *gin.Context) {
	claims, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	session := &socketSession{
		userID:  claims.UserID,
		handle:  core.NewChanHandle(32),
		rooms:   make(map[string]struct{}),
		limiter: newSendLimiter(h.sendLimit),
	}
	defer h.teardown(session)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("user_id", session.userID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

type socketSession struct {
	userID  string
	handle  *core.ChanHandle
	rooms   map[string]struct{}
	limiter *sendLimiter
}

func (h *WSHandler) authenticate(c *gin.Context) (*auth.Claims, error) {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.auth.ValidateToken(token)
}

// teardown is the disconnect path: every joined room is unregistered and
// the handle closed, whatever ended the connection.
func (h *WSHandler) teardown(s *socketSession) {
	for roomID := range s.rooms {
		h.svc.Unsubscribe(roomID, s.userID, core.TransportSocket, s.handle)
	}
	s.handle.Close()
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, s *socketSession) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if err := h.dispatch(ctx, s, inbound); err != nil {
			return err
		}
	}
}

// dispatch handles one inbound event. Domain failures are pushed back to
// the client through the session handle; only transport failures end the
// connection.
func (h *WSHandler) dispatch(ctx context.Context, s *socketSession, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return err
		}
		return h.handleJoin(ctx, s, join.RoomID)

	case proto.InboundTypeSendMessage:
		var send proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return err
		}
		return h.handleSend(ctx, s, send)

	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return err
		}
		if _, joined := s.rooms[typing.RoomID]; joined {
			h.svc.Typing(typing.RoomID, s.userID, typing.IsTyping)
		}
		return nil

	default:
		return s.handle.Push(core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeBadRequest, Message: "unknown event type"},
		})
	}
}

func (h *WSHandler) handleJoin(ctx context.Context, s *socketSession, roomID string) error {
	err := h.svc.Join(ctx, roomID, s.userID, core.TransportSocket, s.handle)
	switch {
	case err == nil:
		s.rooms[roomID] = struct{}{}
		return s.handle.Push(core.Event{Kind: core.EventConnected})
	case errors.Is(err, chat.ErrAccessDenied):
		return s.handle.Push(core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeRoomNotFound, Message: "room not found"},
		})
	case errors.Is(err, chat.ErrRoomRequired):
		return s.handle.Push(core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeBadRequest, Message: "roomId is required"},
		})
	default:
		return err
	}
}

func (h *WSHandler) handleSend(ctx context.Context, s *socketSession, send proto.SendMessageData) error {
	if !s.limiter.allow() {
		return s.handle.Push(core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeRateLimited, Message: "too many messages"},
		})
	}

	// The authenticated identity wins over any senderId on the wire.
	_, err := h.svc.Send(ctx, send.RoomID, s.userID, send.Message)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrRoomRequired), errors.Is(err, chat.ErrTextRequired):
		return s.handle.Push(core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeBadRequest, Message: err.Error()},
		})
	case errors.Is(err, chat.ErrAccessDenied):
		return s.handle.Push(core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeRoomNotFound, Message: "room not found"},
		})
	default:
		h.log.Error().Err(err).Str("room_id", send.RoomID).Msg("socket send failed")
		return s.handle.Push(core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeInternal, Message: "failed to send message"},
		})
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, s *socketSession) error {
	for {
		select {
		case event, ok := <-s.handle.Events():
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("user_id", s.userID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
