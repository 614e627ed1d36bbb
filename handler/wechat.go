package handler

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"wechat-bridge/internal/domain"
)

// inboundXML is the platform's push envelope for a text message.
type inboundXML struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Content      string   `xml:"Content"`
	MsgID        int64    `xml:"MsgId"`
}

// replyXML is the synchronous reply envelope.
type replyXML struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Content      string   `xml:"Content"`
}

func decodeInbound(body string) (inboundXML, error) {
	var msg inboundXML
	if err := xml.Unmarshal([]byte(body), &msg); err != nil {
		return inboundXML{}, fmt.Errorf("handler: decode inbound xml: %w", err)
	}
	return msg, nil
}

func encodeReply(reply domain.Reply) (string, error) {
	out, err := xml.Marshal(replyXML{
		ToUserName:   reply.ToUser,
		FromUserName: reply.FromUser,
		CreateTime:   reply.CreatedTime,
		MsgType:      reply.MsgType,
		Content:      reply.Content,
	})
	if err != nil {
		return "", fmt.Errorf("handler: encode reply xml: %w", err)
	}
	return string(out), nil
}

// verifySignature checks the platform's webhook signature: sha1 over the
// lexicographically sorted concatenation of token, timestamp and nonce.
func verifySignature(token, timestamp, nonce, signature string) bool {
	values := []string{token, timestamp, nonce}
	sort.Strings(values)
	sum := sha1.Sum([]byte(strings.Join(values, "")))
	return hex.EncodeToString(sum[:]) == signature
}
