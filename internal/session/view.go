package session

import (
	"encoding/base64"

	"github.com/vbonduro/plantid/internal/domain"
)

type State string

const (
	StateIdle      State = "idle"
	StateAnalyzing State = "analyzing"
	StateResults   State = "results"
	StateError     State = "error"
)

// Image is an uploaded photo held in memory for preview and classification.
// Data is never mutated after upload.
type Image struct {
	Data     []byte
	MIMEType string
}

func (i Image) DataURI() string {
	if len(i.Data) == 0 {
		return ""
	}
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// View is the screen a session is on. Exactly one of Idle, Analyzing,
// Results or Failed; each carries only the data valid in that state.
type View interface {
	State() State
	isView()
}

type Idle struct{}

type Analyzing struct {
	Preview Image
}

// Results always holds a record and a transcript starting with the
// assistant greeting.
type Results struct {
	Preview      Image
	Record       domain.PlantRecord
	Transcript   []domain.ConversationTurn
	ReplyPending bool
}

type Failed struct {
	Message string
}

func (Idle) State() State      { return StateIdle }
func (Analyzing) State() State { return StateAnalyzing }
func (Results) State() State   { return StateResults }
func (Failed) State() State    { return StateError }

func (Idle) isView()      {}
func (Analyzing) isView() {}
func (Results) isView()   {}
func (Failed) isView()    {}

// Preview returns the image shown for v, if any.
func Preview(v View) (Image, bool) {
	switch v := v.(type) {
	case Analyzing:
		return v.Preview, len(v.Preview.Data) > 0
	case Results:
		return v.Preview, len(v.Preview.Data) > 0
	default:
		return Image{}, false
	}
}

func copyView(v View) View {
	if r, ok := v.(Results); ok {
		r.Transcript = append([]domain.ConversationTurn(nil), r.Transcript...)
		return r
	}
	return v
}
