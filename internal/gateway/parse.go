package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vbonduro/plantid/internal/domain"
)

var errEmptyPayload = errors.New("no response text")

// ParsePlantRecord decodes a model reply into a PlantRecord. A surrounding
// markdown code fence is tolerated; every field is required and must be
// non-blank.
func ParsePlantRecord(raw string) (*domain.PlantRecord, error) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, ClassificationFailed("parse", errEmptyPayload)
	}

	var rec domain.PlantRecord
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, ClassificationFailed("parse", fmt.Errorf("decode plant record: %w", err))
	}
	if missing := missingFields(&rec); len(missing) > 0 {
		return nil, ClassificationFailed("parse", fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	return &rec, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func missingFields(r *domain.PlantRecord) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"commonName", r.CommonName},
		{"scientificName", r.ScientificName},
		{"description", r.Description},
		{"care.light", r.Care.Light},
		{"care.water", r.Care.Water},
		{"care.soil", r.Care.Soil},
		{"care.toxicity", r.Care.Toxicity},
		{"funFact", r.FunFact},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
