package ai

import "testing"

func TestDominantEmotion(t *testing.T) {
	tests := []struct {
		name        string
		detections  []EmotionScore
		expected    string
		expectScore float64
		expectFound bool
	}{
		{
			name:        "single face",
			detections:  []EmotionScore{{"Joy", 0.9}, {"Sadness", 0.2}},
			expected:    "Joy",
			expectScore: 0.9,
			expectFound: true,
		},
		{
			name:        "max across faces",
			detections:  []EmotionScore{{"Joy", 0.4}, {"Sadness", 0.2}, {"Anger", 0.7}, {"Calmness", 0.1}},
			expected:    "Anger",
			expectScore: 0.7,
			expectFound: true,
		},
		{
			name:        "tie keeps first in provider order",
			detections:  []EmotionScore{{"Boredom", 0.3}, {"Awe", 0.8}, {"Fear", 0.8}, {"Joy", 0.8}},
			expected:    "Awe",
			expectScore: 0.8,
			expectFound: true,
		},
		{
			name:        "unknown names ignored",
			detections:  []EmotionScore{{"Zeal", 0.99}, {"Relief", 0.5}},
			expected:    "Relief",
			expectScore: 0.5,
			expectFound: true,
		},
		{
			name:        "zero scores still select first",
			detections:  []EmotionScore{{"Doubt", 0}, {"Envy", 0}},
			expected:    "Doubt",
			expectScore: 0,
			expectFound: true,
		},
		{
			name:        "no detections",
			detections:  nil,
			expectFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for run := 0; run < 3; run++ {
				got, found := DominantEmotion(tt.detections)
				if found != tt.expectFound {
					t.Fatalf("expected found=%v, got %v", tt.expectFound, found)
				}
				if !found {
					return
				}
				if got.Name != tt.expected || got.Score != tt.expectScore {
					t.Errorf("expected %s (%v), got %s (%v)", tt.expected, tt.expectScore, got.Name, got.Score)
				}
			}
		})
	}
}

func TestEmotionTaxonomy(t *testing.T) {
	names := EmotionNames()
	if len(names) < 50 {
		t.Errorf("expected at least 50 emotions, got %d", len(names))
	}

	for _, name := range names {
		emoji, ok := EmojiFor(name)
		if !ok || emoji == "" {
			t.Errorf("emotion %s has no emoji", name)
		}
	}

	if emoji, _ := EmojiFor("Joy"); emoji != "😄" {
		t.Errorf("expected Joy to map to 😄, got %s", emoji)
	}
	if IsKnownEmotion("Hunger") {
		t.Error("expected Hunger to be unknown")
	}
}
