package ws

import (
	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
)

// Inbound event types.
const (
	EventJoin              = "join"
	EventLeave             = "leave"
	EventSendMessage       = "send_message"
	EventMarkRead          = "mark_read"
	EventSubscribeActivity = "subscribe_activity"
)

// Outbound event types.
const (
	EventJoined            = "joined"
	EventLeft              = "left"
	EventMessage           = "message"
	EventBalanceUpdate     = "balance_update"
	EventInsufficientFunds = "insufficient_funds"
	EventRead              = "read"
	EventActivity          = "activity"
	EventError             = "error"
)

// InboundEvent is a client frame. Data carries base64 media for image and
// audio messages.
type InboundEvent struct {
	Type        string         `json:"type"`
	RoomID      int            `json:"room_id,omitempty"`
	Kind        models.KindTag `json:"kind,omitempty"`
	Tier        int            `json:"tier,omitempty"`
	Content     string         `json:"content,omitempty"`
	Data        string         `json:"data,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
}

func (e InboundEvent) messageKind() models.MessageKind {
	kind := models.MessageKind{Tag: e.Kind}
	if e.Kind == models.KindGift {
		kind.Tier = e.Tier
	}
	return kind
}

type OutboundEvent struct {
	Type      string           `json:"type"`
	RoomID    int              `json:"room_id,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	Message   *models.Message  `json:"message,omitempty"`
	Balance   *int64           `json:"balance,omitempty"`
	Required  int64            `json:"required,omitempty"`
	Available *int64           `json:"available,omitempty"`
	ReaderID  int              `json:"reader_id,omitempty"`
	Count     int64            `json:"count,omitempty"`
	Activity  *models.Activity `json:"activity,omitempty"`
	Code      apperr.Code      `json:"code,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func errorEvent(requestID string, err error) OutboundEvent {
	return OutboundEvent{
		Type:      EventError,
		RequestID: requestID,
		Code:      apperr.CodeOf(err),
		Error:     apperr.MessageOf(err),
	}
}
