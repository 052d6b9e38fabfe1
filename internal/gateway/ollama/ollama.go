package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/vbonduro/plantid/internal/domain"
	"github.com/vbonduro/plantid/internal/gateway"
)

// plantFormat is the JSON schema passed as "format" so Ollama constrains
// the reply to a plant record.
var plantFormat = json.RawMessage(`{
  "type": "object",
  "properties": {
    "commonName": {"type": "string"},
    "scientificName": {"type": "string"},
    "description": {"type": "string"},
    "care": {
      "type": "object",
      "properties": {
        "light": {"type": "string"},
        "water": {"type": "string"},
        "soil": {"type": "string"},
        "toxicity": {"type": "string"}
      },
      "required": ["light", "water", "soil", "toxicity"]
    },
    "funFact": {"type": "string"}
  },
  "required": ["commonName", "scientificName", "description", "care", "funFact"]
}`)

type OllamaGateway struct {
	host   string
	model  string
	client *http.Client
}

func NewOllamaGateway(host, model string) *OllamaGateway {
	return &OllamaGateway{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{},
	}
}

type generateRequest struct {
	Model  string          `json:"model"`
	Prompt string          `json:"prompt"`
	Images []string        `json:"images"`
	Format json.RawMessage `json:"format"`
	Stream bool            `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

func (g *OllamaGateway) Classify(ctx context.Context, image []byte, mimeType string) (*domain.PlantRecord, error) {
	// vision models behind Ollama decode PNG and JPEG only
	image, _, err := gateway.FlattenGIF(image, mimeType)
	if err != nil {
		return nil, gateway.ClassificationFailed("prepare image", err)
	}
	body := generateRequest{
		Model:  g.model,
		Prompt: gateway.ClassifyPrompt + gateway.JSONOnlySuffix,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Format: plantFormat,
	}

	var respBody struct {
		Response string `json:"response"`
	}
	if err := g.post(ctx, "/api/generate", body, &respBody); err != nil {
		return nil, gateway.ClassificationFailed("call ollama", err)
	}
	return gateway.ParsePlantRecord(respBody.Response)
}

func (g *OllamaGateway) StartConversation(_ context.Context, record domain.PlantRecord) (gateway.Conversation, error) {
	return &conversation{
		gw:      g,
		history: []chatMessage{{Role: "system", Content: gateway.SystemInstruction(record)}},
	}, nil
}

func (g *OllamaGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, errBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// conversation keeps the system message at history[0].
type conversation struct {
	gw *OllamaGateway

	mu      sync.Mutex
	history []chatMessage
	closed  bool
}

func (c *conversation) Send(ctx context.Context, message string) string {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return gateway.ApologyUnavailable
	}
	userTurn := chatMessage{Role: "user", Content: message}
	messages := make([]chatMessage, 0, len(c.history)+1)
	messages = append(messages, c.history...)
	messages = append(messages, userTurn)
	c.mu.Unlock()

	var respBody struct {
		Message chatMessage `json:"message"`
	}
	err := c.gw.post(ctx, "/api/chat", chatRequest{Model: c.gw.model, Messages: messages}, &respBody)
	if err != nil {
		slog.Error("ollama chat failed", "model", c.gw.model, "error", err)
		return gateway.ApologyUnavailable
	}
	reply := strings.TrimSpace(respBody.Message.Content)
	if reply == "" {
		return gateway.ApologyEmpty
	}

	c.mu.Lock()
	if !c.closed {
		c.history = append(c.history, userTurn, chatMessage{Role: "assistant", Content: reply})
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
