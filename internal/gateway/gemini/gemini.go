package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/vbonduro/plantid/internal/domain"
	"github.com/vbonduro/plantid/internal/gateway"
)

type GeminiGateway struct {
	client *genai.Client
	model  string
}

func NewGeminiGateway(ctx context.Context, apiKey, model string) (*GeminiGateway, error) {
	return newGateway(ctx, apiKey, model, genai.HTTPOptions{})
}

func newGateway(ctx context.Context, apiKey, model string, httpOpts genai.HTTPOptions) (*GeminiGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGateway{client: client, model: model}, nil
}

// plantSchema mirrors domain.PlantRecord; every property is required.
func plantSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"commonName":     str(),
			"scientificName": str(),
			"description":    str(),
			"care": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"light":    str(),
					"water":    str(),
					"soil":     str(),
					"toxicity": str(),
				},
				Required: []string{"light", "water", "soil", "toxicity"},
			},
			"funFact": str(),
		},
		Required: []string{"commonName", "scientificName", "description", "care", "funFact"},
	}
}

func (g *GeminiGateway) Classify(ctx context.Context, image []byte, mimeType string) (*domain.PlantRecord, error) {
	image, mimeType, err := gateway.FlattenGIF(image, mimeType)
	if err != nil {
		return nil, gateway.ClassificationFailed("prepare image", err)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, normaliseMIME(mimeType)),
			genai.NewPartFromText(gateway.ClassifyPrompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   plantSchema(),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, gateway.ClassificationFailed("call gemini", err)
	}
	return gateway.ParsePlantRecord(resp.Text())
}

func (g *GeminiGateway) StartConversation(_ context.Context, record domain.PlantRecord) (gateway.Conversation, error) {
	return &conversation{
		client: g.client,
		model:  g.model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(gateway.SystemInstruction(record), genai.RoleUser),
		},
	}, nil
}

// conversation replays the accumulated history with every turn; only
// successful exchanges are appended.
type conversation struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig

	mu      sync.Mutex
	history []*genai.Content
	closed  bool
}

func (c *conversation) Send(ctx context.Context, message string) string {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return gateway.ApologyUnavailable
	}
	userTurn := genai.NewContentFromText(message, genai.RoleUser)
	contents := make([]*genai.Content, 0, len(c.history)+1)
	contents = append(contents, c.history...)
	contents = append(contents, userTurn)
	c.mu.Unlock()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.config)
	if err != nil {
		slog.Error("gemini chat failed", "model", c.model, "error", err)
		return gateway.ApologyUnavailable
	}
	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return gateway.ApologyEmpty
	}

	c.mu.Lock()
	if !c.closed {
		c.history = append(c.history, userTurn, genai.NewContentFromText(reply, genai.RoleModel))
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

// normaliseMIME maps browser MIME types onto the image types Gemini accepts.
// GIF is not among them and is flattened before this point.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/webp", "image/heic", "image/heif":
		return mimeType
	default:
		return "image/jpeg"
	}
}
