// Package openai phrases the bot's chat messages with a chat completion
// model. Every caller has a fixed fallback text, so a failure here only
// costs the personal touch.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/sashabaranov/go-openai"
)

// Intents the client knows how to phrase
const (
	IntentWelcome        = "welcome"
	IntentTimerCompleted = "timer_completed"
)

const systemPrompt = "You are a friendly kitchen assistant in a Telegram chat that keeps cooking timers. " +
	"Write one short, mobile-friendly message with an emoji or two. Reply with the message text only."

var instructions = map[string]string{
	IntentWelcome:        "Greet a cook who just opened the chat and say what the bot does. Do not list the commands; they are appended for you.",
	IntentTimerCompleted: "Announce that the timer for this step has finished. Name the step and, when given, the recipe. At most two sentences.",
}

// maxReplyTokens keeps answers at chat-message length
const maxReplyTokens = 120

// Client represents an OpenAI API client
type Client struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// New creates a new OpenAI client
func New(apiKey, apiBase, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		config.BaseURL = apiBase
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger.New("openai"),
	}
}

// GenerateChatMessage phrases the message for intent using contextData
func (c *Client) GenerateChatMessage(ctx context.Context, intent string, contextData map[string]interface{}) (string, error) {
	instruction, ok := instructions[intent]
	if !ok {
		return "", fmt.Errorf("unknown intent %q", intent)
	}
	details, err := json.Marshal(contextData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: instruction + "\nDetails: " + string(details)},
		},
		MaxTokens:   maxReplyTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI API")
	}

	c.logger.Debug("Phrased %s with %s using %d tokens", intent, c.model, resp.Usage.TotalTokens)
	return cleanReply(resp.Choices[0].Message.Content), nil
}

// cleanReply drops the whitespace and wrapping quotes models like to add
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
