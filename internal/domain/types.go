package domain

import "time"

type CareGuide struct {
	Light    string `json:"light"`
	Water    string `json:"water"`
	Soil     string `json:"soil"`
	Toxicity string `json:"toxicity"`
}

// PlantRecord is the structured result of a single identification.
type PlantRecord struct {
	CommonName     string    `json:"commonName"`
	ScientificName string    `json:"scientificName"`
	Description    string    `json:"description"`
	Care           CareGuide `json:"care"`
	FunFact        string    `json:"funFact"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ConversationTurn struct {
	Role      Role
	Text      string
	CreatedAt time.Time
}

type Outcome string

const (
	OutcomeIdentified Outcome = "identified"
	OutcomeFailed     Outcome = "failed"
)

// Identification is one journal entry for a classify attempt.
type Identification struct {
	ID             int64
	SessionID      string
	CommonName     string
	ScientificName string
	Outcome        Outcome
	Duration       time.Duration
	CreatedAt      time.Time
}
