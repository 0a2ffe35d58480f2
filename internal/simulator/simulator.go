// Package simulator generates synthetic file activity telemetry for demos
// and load testing. Generated events only carry the raw indicators; severity
// and action are assigned by the regular classification pipeline.
package simulator

import (
	"fmt"
	"math/rand/v2"
)

var processNames = []string{
	"chrome.exe",
	"firefox.exe",
	"explorer.exe",
	"notepad.exe",
	"system32.exe",
	"msedge.exe",
	"vscode.exe",
}

var filePathPrefixes = []string{
	`C:\Users\Documents\file`,
	`C:\Users\Downloads\document`,
	`C:\Program Files\data`,
	`D:\Projects\source`,
	`C:\Windows\System32\config`,
}

var fileExtensions = []string{"txt", "doc", "pdf", "exe"}

var eventTypes = []string{"write", "rename", "delete", "access"}

// Event is one synthetic telemetry sample.
type Event struct {
	ProcessName  string
	FilePath     string
	EventType    string
	EntropyScore float64
	RenameCount  int
}

// Generator produces random telemetry events. Roughly 10% of events carry a
// suspicious entropy and rename profile and 5% a full threat profile; the
// rest look like normal activity.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator seeded from the global source.
func New() *Generator {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a deterministic generator for tests.
func NewSeeded(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Generate produces one event. Entropy bands: normal activity scores 30-65,
// suspicious 65-80, threats 80-100. Rename counts follow the same profile so
// threat-band events trip both indicators.
func (g *Generator) Generate() *Event {
	ev := &Event{
		ProcessName: processNames[g.rng.IntN(len(processNames))],
		FilePath: fmt.Sprintf("%s_%d.%s",
			filePathPrefixes[g.rng.IntN(len(filePathPrefixes))],
			g.rng.IntN(1000),
			fileExtensions[g.rng.IntN(len(fileExtensions))]),
		EventType:    eventTypes[g.rng.IntN(len(eventTypes))],
		EntropyScore: 30 + g.rng.Float64()*35,
		RenameCount:  g.rng.IntN(5),
	}

	if g.rng.Float64() < 0.1 {
		ev.EntropyScore = 65 + g.rng.Float64()*15
		ev.RenameCount = 20 + g.rng.IntN(30)
	}
	if g.rng.Float64() < 0.05 {
		ev.EntropyScore = 80 + g.rng.Float64()*20
		ev.RenameCount = 100 + g.rng.IntN(100)
	}

	ev.EntropyScore = float64(int(ev.EntropyScore*100)) / 100
	return ev
}

// GenerateBatch produces n events.
func (g *Generator) GenerateBatch(n int) []*Event {
	batch := make([]*Event, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, g.Generate())
	}
	return batch
}
