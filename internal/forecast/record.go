package forecast

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the saved futurecast file format version.
const Version = "0.1.0"

// Futurecast is one complete run: the prediction tree, its narrative
// summary, and when it was generated. This is the on-disk record.
type Futurecast struct {
	Tree      *Tree     `json:"tree"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// NewFuturecast stamps a tree and summary into a saveable record.
func NewFuturecast(tree *Tree, summary string) *Futurecast {
	return &Futurecast{
		Tree:      tree,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
		Version:   Version,
	}
}

// Marshal serializes the record as indented JSON.
func (f *Futurecast) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal futurecast: %w", err)
	}
	return data, nil
}

// Unmarshal parses a saved futurecast record.
func Unmarshal(data []byte) (*Futurecast, error) {
	var f Futurecast
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse futurecast: %w", err)
	}
	if f.Tree == nil {
		return nil, fmt.Errorf("parse futurecast: missing tree")
	}
	return &f, nil
}
