package domain

import (
	"encoding/json"
	"time"
)

// Client → server events.
const (
	EventJoinUserRoom     = "join_user_room"
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventSendMessage      = "send_message"
	EventMarkMessagesSeen = "mark_messages_seen"
	EventGetUserStatus    = "get_user_status"
	EventDeleteMessage    = "delete_message"
)

// Server → client events.
const (
	EventReceiveMessage    = "receive_message"
	EventUserStatusChanged = "user_status_changed"
	EventMessagesSeen      = "messages_seen"
	EventMessageDeleted    = "message_deleted"
	EventUserStatus        = "user_status"
	EventError             = "error"
)

// Envelope is the frame exchanged over the websocket. ID correlates
// callback-style requests (get_user_status) with their reply.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserChannel is the personal notification channel of a user.
func UserChannel(userID string) string {
	return "user_" + userID
}

// ChatChannel is the room-scoped channel of one side of a conversation.
// Both sides carry their own channel name, hence the relay emits to both.
func ChatChannel(roomID, userID string) string {
	return "chat_" + roomID + "_" + userID
}

type JoinUserRoomPayload struct {
	UserID string `json:"userId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type SendMessagePayload struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	MessageID  string    `json:"messageId"`
}

type MarkMessagesSeenPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type GetUserStatusPayload struct {
	UserID string `json:"userId"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
	RoomID    string `json:"roomId"`
}

type ReceiveMessagePayload struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	MessageID  string    `json:"messageId"`
	IsSeen     bool      `json:"isSeen"`
}

type UserStatusChangedPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	RoomID   string `json:"roomId,omitempty"`
}

type MessagesSeenPayload struct {
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	MessageID   string    `json:"messageId,omitempty"`
	AllMessages bool      `json:"allMessages,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
}

// UserStatusPayload is the callback reply to get_user_status. Error is set
// instead of the status fields when the guard rejects the request.
type UserStatusPayload struct {
	UserID      string     `json:"userId"`
	IsOnline    bool       `json:"isOnline"`
	CurrentRoom string     `json:"currentRoom,omitempty"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
