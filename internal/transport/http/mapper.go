package http

import (
	"github.com/tutorlink/chat-server/internal/core"
	"github.com/tutorlink/chat-server/internal/proto"
)

func payloadFromMessage(msg *core.Message) *proto.MessagePayload {
	return &proto.MessagePayload{
		ID:          msg.ID,
		Content:     msg.Text,
		Sender:      msg.SenderName,
		SenderImage: msg.SenderAvatar,
		Timestamp:   msg.CreatedAt,
	}
}

// streamEventFromCore maps a core event to an SSE data frame. Events the
// stream transport does not carry (typing) map to nil and are skipped.
func streamEventFromCore(ev core.Event) *proto.StreamEvent {
	switch ev.Kind {
	case core.EventConnected:
		return &proto.StreamEvent{Type: proto.StreamTypeConnected}
	case core.EventMessage:
		return &proto.StreamEvent{
			Type: proto.StreamTypeMessage,
			Data: payloadFromMessage(ev.Message),
		}
	default:
		return nil
	}
}

// outboundFromEvent maps a core event to a socket envelope.
func outboundFromEvent(ev core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventConnected:
		return proto.Outbound{Type: proto.OutboundTypeConnected}
	case core.EventMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeReceiveMessage,
			Data: payloadFromMessage(ev.Message),
		}
	case core.EventTyping:
		return proto.Outbound{
			Type: proto.OutboundTypeUserTyping,
			Data: proto.TypingPayload{
				UserID:   ev.Typing.UserID,
				IsTyping: ev.Typing.IsTyping,
			},
		}
	case core.EventError:
		if ev.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unmapped event"}}
	}
}
