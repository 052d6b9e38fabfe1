package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/plantid/internal/domain"
	"github.com/vbonduro/plantid/internal/gateway"
)

const pothosJSON = `{"commonName":"Pothos","scientificName":"Epipremnum aureum","description":"Trailing vine.","care":{"light":"Medium indirect","water":"When top inch is dry","soil":"Peat-based","toxicity":"Toxic to cats and dogs"},"funFact":"Nearly impossible to kill."}`

func TestOllamaClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req.Model)
		assert.Len(t, req.Images, 1)
		assert.False(t, req.Stream)
		assert.NotEmpty(t, req.Format)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "response": pothosJSON})
	}))
	defer server.Close()

	g := NewOllamaGateway(server.URL, "llava")

	rec, err := g.Classify(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Pothos", rec.CommonName)
	assert.Equal(t, "Toxic to cats and dogs", rec.Care.Toxicity)
}

func TestOllamaClassifyNetworkError(t *testing.T) {
	g := NewOllamaGateway("http://localhost:99999", "llava")

	_, err := g.Classify(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	assert.ErrorIs(t, err, gateway.ErrClassification)
}

func TestOllamaClassifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	g := NewOllamaGateway(server.URL, "llava")

	_, err := g.Classify(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	assert.ErrorIs(t, err, gateway.ErrClassification)
}

func TestOllamaClassifyMissingField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": `{"commonName":"Pothos"}`})
	}))
	defer server.Close()

	g := NewOllamaGateway(server.URL, "llava")

	_, err := g.Classify(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	assert.ErrorIs(t, err, gateway.ErrClassification)
}

func TestOllamaClassifyFlattensGIF(t *testing.T) {
	var sent []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Images, 1)
		sent, _ = base64.StdEncoding.DecodeString(req.Images[0])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": pothosJSON})
	}))
	defer server.Close()

	var buf bytes.Buffer
	frame := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	require.NoError(t, gif.Encode(&buf, frame, nil))

	g := NewOllamaGateway(server.URL, "llava")
	_, err := g.Classify(context.Background(), buf.Bytes(), "image/gif")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(sent, []byte("\x89PNG")), "expected png bytes")
}

func TestOllamaConversation(t *testing.T) {
	var lastMessages []chatMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastMessages = req.Messages

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "Trim it in spring."},
		})
	}))
	defer server.Close()

	g := NewOllamaGateway(server.URL, "llava")
	ctx := context.Background()
	conv, err := g.StartConversation(ctx, domain.PlantRecord{CommonName: "Pothos", ScientificName: "Epipremnum aureum"})
	require.NoError(t, err)
	defer conv.Close()

	assert.Equal(t, "Trim it in spring.", conv.Send(ctx, "When should I prune?"))
	assert.Equal(t, "Trim it in spring.", conv.Send(ctx, "And repot?"))

	require.Len(t, lastMessages, 4)
	assert.Equal(t, "system", lastMessages[0].Role)
	assert.Contains(t, lastMessages[0].Content, "Epipremnum aureum")
	assert.Equal(t, chatMessage{Role: "user", Content: "And repot?"}, lastMessages[3])
}

func TestOllamaConversationFailsSoft(t *testing.T) {
	g := NewOllamaGateway("http://localhost:99999", "llava")
	ctx := context.Background()
	conv, err := g.StartConversation(ctx, domain.PlantRecord{CommonName: "Pothos"})
	require.NoError(t, err)

	assert.Equal(t, gateway.ApologyUnavailable, conv.Send(ctx, "hello"))
}
