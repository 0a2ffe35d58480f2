package detection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	autoBlock := Thresholds{Entropy: 75, Rename: 50, AutoBlock: true}
	noBlock := Thresholds{Entropy: 75, Rename: 50, AutoBlock: false}

	tests := []struct {
		name         string
		entropy      float64
		renames      int
		th           Thresholds
		wantSeverity Severity
		wantAction   Action
	}{
		{"both exceeded with auto-block", 82, 120, autoBlock, SeverityThreat, ActionBlocked},
		{"only renames exceeded", 60, 120, autoBlock, SeverityWarning, ActionFlagged},
		{"only entropy exceeded", 90, 10, autoBlock, SeverityWarning, ActionFlagged},
		{"both exceeded without auto-block", 90, 200, noBlock, SeverityThreat, ActionFlagged},
		{"neither exceeded", 30, 2, autoBlock, SeveritySafe, ActionIgnored},
		{"entropy equal to threshold does not exceed", 75, 120, autoBlock, SeverityWarning, ActionFlagged},
		{"rename equal to threshold does not exceed", 82, 50, autoBlock, SeverityWarning, ActionFlagged},
		{"both equal to thresholds", 75, 50, autoBlock, SeveritySafe, ActionIgnored},
		{"zero values", 0, 0, autoBlock, SeveritySafe, ActionIgnored},
		{"negative entropy taken at face value", -5, 120, autoBlock, SeverityWarning, ActionFlagged},
		{"negative threshold makes zero exceed", 1, 0, Thresholds{Entropy: -1, Rename: -1, AutoBlock: true}, SeverityThreat, ActionBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			severity, action := Classify(tt.entropy, tt.renames, tt.th)
			assert.Equal(t, tt.wantSeverity, severity)
			assert.Equal(t, tt.wantAction, action)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	th := Thresholds{Entropy: 75, Rename: 50, AutoBlock: true}
	firstSeverity, firstAction := Classify(82.5, 60, th)
	for i := 0; i < 100; i++ {
		severity, action := Classify(82.5, 60, th)
		assert.Equal(t, firstSeverity, severity)
		assert.Equal(t, firstAction, action)
	}
}

func TestClassifyAutoBlockDisabledNeverBlocks(t *testing.T) {
	t.Parallel()

	th := Thresholds{Entropy: 0, Rename: 0, AutoBlock: false}
	for entropy := -10.0; entropy <= 110; entropy += 7.3 {
		for renames := 0; renames <= 300; renames += 17 {
			_, action := Classify(entropy, renames, th)
			assert.NotEqual(t, ActionBlocked, action,
				"entropy=%v renames=%d produced a block with auto-block off", entropy, renames)
		}
	}
}

func TestValidateRaw(t *testing.T) {
	t.Parallel()

	valid := RawEvent{
		ProcessName:  "chrome.exe",
		FilePath:     `C:\Users\Documents\file_1.txt`,
		EventType:    EventWrite,
		EntropyScore: 42.5,
		RenameCount:  3,
	}
	assert.NoError(t, ValidateRaw(&valid))

	tests := []struct {
		name   string
		mutate func(*RawEvent)
	}{
		{"empty process name", func(r *RawEvent) { r.ProcessName = "" }},
		{"empty file path", func(r *RawEvent) { r.FilePath = "" }},
		{"empty event type", func(r *RawEvent) { r.EventType = "" }},
		{"NaN entropy", func(r *RawEvent) { r.EntropyScore = math.NaN() }},
		{"positive infinite entropy", func(r *RawEvent) { r.EntropyScore = math.Inf(1) }},
		{"negative infinite entropy", func(r *RawEvent) { r.EntropyScore = math.Inf(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := valid
			tt.mutate(&raw)
			assert.Error(t, ValidateRaw(&raw))
		})
	}
}
