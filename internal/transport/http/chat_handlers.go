package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tutorlink/chat-server/internal/core"
	"github.com/tutorlink/chat-server/internal/proto"
	"github.com/tutorlink/chat-server/internal/service/chat"
)

// ChatHandlers provides the event-stream transport and the REST endpoints
// of the chat session facade.
type ChatHandlers struct {
	svc *chat.Service
	log *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(svc *chat.Service, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{svc: svc, log: logger}
}

// SendMessageRequest represents the send request body.
type SendMessageRequest struct {
	RoomID   string `json:"roomId" binding:"required"`
	Message  string `json:"message" binding:"required"`
	SenderID string `json:"senderId" binding:"required"`
}

// RoomResponse represents a chat room in API responses.
type RoomResponse struct {
	RoomID    string `json:"roomId"`
	BookingID string `json:"bookingId"`
}

// StreamEvents opens the event-stream subscription for a room.
// GET /api/chat/events?roomId=&userId=
func (h *ChatHandlers) StreamEvents(c *gin.Context) {
	roomID := c.Query("roomId")
	userID := c.Query("userId")
	if roomID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomId and userId are required"})
		return
	}

	handle, err := h.svc.Subscribe(c.Request.Context(), roomID, userID, core.TransportStream)
	if err != nil {
		if errors.Is(err, chat.ErrAccessDenied) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to open stream")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer handle.Close()
	defer h.svc.Unsubscribe(roomID, userID, core.TransportStream, handle)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// The request context cancels when the client disconnects; that is the
	// sole cleanup trigger for this transport.
	ctx := c.Request.Context()
	for {
		select {
		case ev, ok := <-handle.Events():
			if !ok {
				// Pruned by the dispatcher or displaced by a re-join.
				return
			}
			if err := writeStreamFrame(c.Writer, ev); err != nil {
				h.log.Debug().Err(err).Str("room_id", roomID).Msg("stream write failed")
				return
			}
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeStreamFrame(w http.ResponseWriter, ev core.Event) error {
	frame := streamEventFromCore(ev)
	if frame == nil {
		return nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	return nil
}

// SendMessage persists a message and broadcasts it to the room.
// POST /api/chat/events
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomId, message and senderId are required"})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), req.RoomID, req.SenderID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrRoomRequired), errors.Is(err, chat.ErrSenderRequired), errors.Is(err, chat.ErrTextRequired):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, chat.ErrAccessDenied):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		default:
			h.log.Error().Err(err).Str("room_id", req.RoomID).Msg("failed to send message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, payloadFromMessage(msg))
}

// History returns the room's messages in persistence order.
// GET /api/chat/messages?roomId=
func (h *ChatHandlers) History(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomId is required"})
		return
	}

	messages, err := h.svc.History(c.Request.Context(), userID, roomID)
	if err != nil {
		if errors.Is(err, chat.ErrAccessDenied) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]*proto.MessagePayload, 0, len(messages))
	for _, msg := range messages {
		response = append(response, payloadFromMessage(msg))
	}

	c.JSON(http.StatusOK, response)
}

// RoomForBooking resolves (creating on first use) the chat room of a
// booking the caller participates in.
// GET /api/chat/room?bookingId=
func (h *ChatHandlers) RoomForBooking(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	bookingID := c.Query("bookingId")
	if bookingID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bookingId is required"})
		return
	}

	room, err := h.svc.RoomForBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		if errors.Is(err, chat.ErrAccessDenied) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
			return
		}
		h.log.Error().Err(err).Str("booking_id", bookingID).Msg("failed to resolve chat room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, RoomResponse{RoomID: room.ID, BookingID: room.BookingID})
}
