package openai

import (
	"strings"

	gopenai "github.com/sashabaranov/go-openai"

	"wechat-bridge/internal/domain"
)

// chatMessages lays out the prompt as provider-agnostic messages: optional
// system persona, then the history as alternating user/assistant messages,
// then the new utterance.
func chatMessages(systemPrompt string, history []domain.ConversationTurn, text string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, 2*len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, domain.ChatMessage{
			Role:    gopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, turn := range history {
		messages = append(messages,
			domain.ChatMessage{Role: gopenai.ChatMessageRoleUser, Content: turn.Request},
			domain.ChatMessage{Role: gopenai.ChatMessageRoleAssistant, Content: turn.Response},
		)
	}
	return append(messages, domain.ChatMessage{
		Role:    gopenai.ChatMessageRoleUser,
		Content: text,
	})
}

// toProviderMessages converts the domain layout to the go-openai request
// shape at the wire edge.
func toProviderMessages(messages []domain.ChatMessage) []gopenai.ChatCompletionMessage {
	out := make([]gopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, gopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// transcriptPrompt flattens the same layout into a single text prompt for
// the legacy completions endpoint, ending with an open AI: line.
func transcriptPrompt(systemPrompt string, history []domain.ConversationTurn, text string) string {
	var b strings.Builder
	if strings.TrimSpace(systemPrompt) != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	for _, turn := range history {
		b.WriteString("Human: ")
		b.WriteString(turn.Request)
		b.WriteString("\nAI: ")
		b.WriteString(turn.Response)
		b.WriteString("\n")
	}
	b.WriteString("Human: ")
	b.WriteString(text)
	b.WriteString("\nAI:")
	return b.String()
}
