package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/vbonduro/plantid/internal/domain"
)

// ClassifyPrompt is the shared identification instruction used by all backends.
const ClassifyPrompt = `Identify this plant. Provide the common name, scientific name, a brief description,
detailed care instructions (light, water, soil, toxicity), and a fun fact.`

// JSONOnlySuffix is appended to ClassifyPrompt for backends without native
// structured output.
const JSONOnlySuffix = `
Respond with a single JSON object and nothing else, using exactly this shape:
{"commonName":"","scientificName":"","description":"","care":{"light":"","water":"","soil":"","toxicity":""},"funFact":""}`

const (
	ApologyEmpty       = "I'm sorry, I didn't catch that. Could you try asking again?"
	ApologyUnavailable = "I'm having trouble connecting to my botanical database right now."
)

// ErrClassification is wrapped by every Classify failure.
var ErrClassification = errors.New("plant could not be classified")

type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType string) (*domain.PlantRecord, error)
}

// Gateway is the full AI surface: one-shot classification plus a
// conversation seeded with the classified record.
type Gateway interface {
	Classifier
	StartConversation(ctx context.Context, record domain.PlantRecord) (Conversation, error)
}

// Conversation is a long-lived chat handle owned by a single session.
// Send never fails: transport errors and empty replies come back as one of
// the Apology strings.
type Conversation interface {
	Send(ctx context.Context, message string) string
	Close()
}

// SystemInstruction builds the context string a conversation is seeded with.
func SystemInstruction(r domain.PlantRecord) string {
	return fmt.Sprintf(`You are an expert botanist and gardening assistant.
The user is asking about a specific plant they just identified:
Name: %s (%s).
Description: %s.
Care Info: Light - %s, Water - %s, Soil - %s.

Answer questions helpfully, concisely, and with a friendly, encouraging tone.
Focus on practical advice for keeping the plant healthy.`,
		r.CommonName, r.ScientificName, r.Description,
		r.Care.Light, r.Care.Water, r.Care.Soil)
}

// Greeting is the first assistant turn shown once a plant is identified.
func Greeting(r domain.PlantRecord) string {
	return fmt.Sprintf("Hello! I see you've found a %s. It looks beautiful! How can I help you care for it today?", r.CommonName)
}

// classificationError wraps cause so that errors.Is matches both
// ErrClassification and cause.
type classificationError struct {
	op    string
	cause error
}

func (e *classificationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrClassification, e.op, e.cause)
}

func (e *classificationError) Unwrap() []error {
	return []error{ErrClassification, e.cause}
}

// ClassificationFailed wraps a backend failure as a classification error.
func ClassificationFailed(op string, cause error) error {
	return &classificationError{op: op, cause: cause}
}
