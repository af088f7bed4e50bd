package research

import (
	"time"

	"github.com/google/uuid"

	"github.com/prospect-labs/prospector/internal/brightdata"
)

// State is the shared record carried through one research run. Stages never
// call each other directly; data flows only through these slots, each written
// by exactly one stage. A fresh State is created per question and never
// shared across runs.
type State struct {
	RunID     string
	Question  string
	StartedAt time.Time

	Google Slot[brightdata.SearchBundle]
	Bing   Slot[brightdata.SearchBundle]
	Reddit Slot[brightdata.DiscoveryBundle]

	SelectedURLs Slot[[]string]
	RedditDetail Slot[brightdata.CommentBundle]

	GoogleAnalysis Slot[string]
	BingAnalysis   Slot[string]
	RedditAnalysis Slot[string]

	FinalAnswer Slot[string]
}

// NewState creates the per-run record for one question.
func NewState(question string) *State {
	return &State{
		RunID:     uuid.New().String(),
		Question:  question,
		StartedAt: time.Now(),
	}
}
