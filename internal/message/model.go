// Package message stores direct messages between residents and recyclers and
// tracks unread counts per conversation.
package message

import "time"

// Message is a direct message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// UnreadCount is the number of unread messages from a single sender.
type UnreadCount struct {
	SenderID string `json:"sender_id"`
	Count    int    `json:"count"`
}
