package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdmit verifies the region-and-topic admission rule
func TestAdmit(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		expected    bool
	}{
		{"region and topic in title", "Florida House Advances Marijuana Bill", "", true},
		{"topic without region", "California Marijuana Bill", "", false},
		{"region without topic", "Florida Legislature Opens Session", "Lawmakers gather in Tallahassee.", false},
		{"region in description", "Trulieve Reports Quarterly Earnings", "The Tallahassee-based operator grew sales.", true},
		{"brand name as topic", "Curaleaf opens new Tampa location", "", true},
		{"case insensitive", "MIAMI CANNABIS EXPO", "", true},
		{"short keyword needs word boundary", "Miami methcathinone bust", "", false},
		{"short keyword as word", "Orlando THC limits debated", "", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Admit(tt.title, tt.description))
		})
	}
}

// TestCategorize verifies first-match-wins ordering and the default label
func TestCategorize(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		expected    string
	}{
		{"legislation", "Senate passes marijuana measure", "", "legislation"},
		{"legislation wins over business", "Bill would cap Trulieve licenses", "", "legislation"},
		{"legal", "Judge blocks hemp ban", "", "legal"},
		{"plural keyword", "Florida cannabis bills stall", "", "legislation"},
		{"substring inside word", "Judge blocks hemp rules", "", "legislation"},
		{"short keyword inside word", "Renewals of cards pile up", "", "medical"},
		{"business", "Curaleaf posts record revenue", "", "business"},
		{"medical", "More patients sign up", "", "medical"},
		{"hemp", "Delta-8 products pulled from shelves", "", "hemp"},
		{"description only", "Update", "The governor signed it.", "legislation"},
		{"default", "Weather is nice", "", DefaultCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.title, tt.description))
		})
	}
}

// TestCategories verifies the exported order matches the match order
func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"legislation", "legal", "business", "medical", "hemp"}, Categories())
}

// TestParseMode verifies mode parsing and defaulting
func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, mode)

	mode, err = ParseMode(" Filter ")
	require.NoError(t, err)
	assert.Equal(t, ModeFilter, mode)

	mode, err = ParseMode("categorize")
	require.NoError(t, err)
	assert.Equal(t, ModeCategorize, mode)

	_, err = ParseMode("score")
	assert.Error(t, err)
}

// TestPolicyApply verifies each mode's keep/label decision
func TestPolicyApply(t *testing.T) {
	onTopic := "Florida House Advances Marijuana Bill"
	offTopic := "California Marijuana Bill"

	keep, label := Policy{Mode: ModeFilter}.Apply(onTopic, "")
	assert.True(t, keep)
	assert.Empty(t, label)

	keep, _ = Policy{Mode: ModeFilter}.Apply(offTopic, "")
	assert.False(t, keep)

	keep, label = Policy{Mode: ModeCategorize}.Apply(offTopic, "")
	assert.True(t, keep)
	assert.Equal(t, "legislation", label)

	keep, label = Policy{Mode: ModeBoth}.Apply(onTopic, "")
	assert.True(t, keep)
	assert.Equal(t, "legislation", label)

	keep, label = Policy{Mode: ModeBoth}.Apply(offTopic, "")
	assert.False(t, keep)
	assert.Empty(t, label)
}
