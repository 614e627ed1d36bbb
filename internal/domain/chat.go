package domain

import "time"

// ChatMessage is the provider-agnostic chat message shape passed to the
// upstream LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the outbound envelope returned to the messaging platform,
// addressed with roles swapped relative to the inbound message.
type Reply struct {
	ToUser      string
	FromUser    string
	CreatedTime int64
	MsgType     string
	Content     string
}

// NewReply builds the reply envelope for an inbound message: the sender
// becomes the recipient and vice versa, stamped at construction time.
func NewReply(msg InboundMessage, content string) Reply {
	return Reply{
		ToUser:      msg.UserID,
		FromUser:    msg.TopicID,
		CreatedTime: time.Now().Unix(),
		MsgType:     "text",
		Content:     content,
	}
}
