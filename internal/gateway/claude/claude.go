package claude

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/plantid/internal/domain"
	"github.com/vbonduro/plantid/internal/gateway"
)

// classifyMaxTokens comfortably covers one plant record; chat replies are
// kept short by the system instruction.
const (
	classifyMaxTokens = 1024
	chatMaxTokens     = 1024
)

type ClaudeGateway struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewClaudeGateway(apiKey, model string) *ClaudeGateway {
	return newGateway(apiKey, model)
}

func newGateway(apiKey, model string, opts ...anthropic.ClientOption) *ClaudeGateway {
	return &ClaudeGateway{
		client: anthropic.NewClient(apiKey, opts...),
		model:  anthropic.Model(model),
	}
}

func (g *ClaudeGateway) Classify(ctx context.Context, image []byte, mimeType string) (*domain.PlantRecord, error) {
	req := anthropic.MessagesRequest{
		Model:     g.model,
		MaxTokens: classifyMaxTokens,
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					normaliseMIME(mimeType),
					base64.StdEncoding.EncodeToString(image),
				)),
				anthropic.NewTextMessageContent(gateway.ClassifyPrompt + gateway.JSONOnlySuffix),
			},
		}},
	}

	resp, err := g.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, gateway.ClassificationFailed("call claude", err)
	}
	return gateway.ParsePlantRecord(resp.GetFirstContentText())
}

func (g *ClaudeGateway) StartConversation(_ context.Context, record domain.PlantRecord) (gateway.Conversation, error) {
	return &conversation{
		client: g.client,
		model:  g.model,
		system: gateway.SystemInstruction(record),
	}, nil
}

type conversation struct {
	client *anthropic.Client
	model  anthropic.Model
	system string

	mu      sync.Mutex
	history []anthropic.Message
	closed  bool
}

func (c *conversation) Send(ctx context.Context, message string) string {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return gateway.ApologyUnavailable
	}
	userTurn := anthropic.NewUserTextMessage(message)
	messages := make([]anthropic.Message, 0, len(c.history)+1)
	messages = append(messages, c.history...)
	messages = append(messages, userTurn)
	c.mu.Unlock()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     c.model,
		System:    c.system,
		MaxTokens: chatMaxTokens,
		Messages:  messages,
	})
	if err != nil {
		slog.Error("claude chat failed", "model", c.model, "error", err)
		return gateway.ApologyUnavailable
	}
	reply := strings.TrimSpace(resp.GetFirstContentText())
	if reply == "" {
		return gateway.ApologyEmpty
	}

	c.mu.Lock()
	if !c.closed {
		c.history = append(c.history, userTurn, anthropic.NewAssistantTextMessage(reply))
	}
	c.mu.Unlock()
	return reply
}

func (c *conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.history = nil
}

// normaliseMIME maps browser MIME types to the values the Anthropic API accepts.
// Unknown types are coerced to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
