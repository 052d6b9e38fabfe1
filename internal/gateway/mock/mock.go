// Package mock provides an offline gateway for test mode and local UI work.
package mock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/plantid/internal/domain"
	"github.com/vbonduro/plantid/internal/gateway"
)

// Monstera is the record every successful mock classification returns.
var Monstera = domain.PlantRecord{
	CommonName:     "Monstera",
	ScientificName: "Monstera deliciosa",
	Description:    "A tropical climbing aroid known for its large, glossy, split leaves.",
	Care: domain.CareGuide{
		Light:    "Bright indirect",
		Water:    "Weekly",
		Soil:     "Well-draining",
		Toxicity: "Toxic to pets",
	},
	FunFact: "Its ripe fruit is edible and tastes like a mix of pineapple and banana.",
}

type MockGateway struct {
	logger *slog.Logger
}

func NewMockGateway(logger *slog.Logger) *MockGateway {
	return &MockGateway{logger: logger}
}

func (g *MockGateway) Classify(_ context.Context, image []byte, mimeType string) (*domain.PlantRecord, error) {
	g.logger.Debug("mock classify", "bytes", len(image), "mime_type", mimeType)
	if len(image) == 0 {
		return nil, gateway.ClassificationFailed("mock", errors.New("empty image"))
	}
	rec := Monstera
	return &rec, nil
}

func (g *MockGateway) StartConversation(_ context.Context, record domain.PlantRecord) (gateway.Conversation, error) {
	return &conversation{name: record.CommonName}, nil
}

type conversation struct {
	name string
}

func (c *conversation) Send(_ context.Context, message string) string {
	return fmt.Sprintf("You asked about your %s: %q. This is a mock reply; set PLANTID_TEST_MODE=0 for real answers.", c.name, message)
}

func (c *conversation) Close() {}
