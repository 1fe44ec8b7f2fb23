package chat

import (
	"github.com/wuwenbin0122/wellbeing-chat/internal/llm"
	"github.com/wuwenbin0122/wellbeing-chat/internal/models"
)

// SystemPrompt fixes the assistant persona for every conversation.
const SystemPrompt = "You are a compassionate and empathetic mental well-being companion. " +
	"Provide supportive, non-judgmental responses that help people explore their feelings. " +
	"Use active listening techniques and ask thoughtful follow-up questions. Always be warm and understanding. " +
	"Only discuss emotional health, stress, relationships, sleep, self-care and similar well-being topics; " +
	"politely decline anything else and steer the conversation back to how the person is feeling. " +
	"If the person mentions self-harm, suicide or being in danger, respond with care and urge them to contact " +
	"local emergency services or a crisis line immediately. You are not a substitute for professional help."

// FallbackReply is returned when the upstream answer has no usable text.
const FallbackReply = "I'm here with you. Could you tell me a little more about how you're feeling right now?"

// BuildPrompt prepends the system turn to history, translating roles one-to-one.
func BuildPrompt(history []models.Message) []llm.Message {
	prompt := make([]llm.Message, 0, len(history)+1)
	prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})

	for _, msg := range history {
		role := llm.RoleUser
		if normalized, _ := models.NormalizeRole(msg.Role); normalized == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		prompt = append(prompt, llm.Message{Role: role, Content: msg.Text})
	}

	return prompt
}
