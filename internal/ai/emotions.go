package ai

import "sort"

// emotionEmojis maps every Hume facial expression name to its display glyph.
// Reference: https://dev.hume.ai/docs/emotions
var emotionEmojis = map[string]string{
	"Admiration":             "😊",
	"Adoration":              "😍",
	"Aesthetic":              "🎨",
	"Aesthetic Appreciation": "🎨",
	"Amusement":              "😄",
	"Anger":                  "😡",
	"Annoyance":              "😒",
	"Anxiety":                "😰",
	"Awe":                    "😲",
	"Awkwardness":            "😳",
	"Boredom":                "😴",
	"Calmness":               "😌",
	"Concentration":          "🧐",
	"Confusion":              "😕",
	"Contemplation":          "🤔",
	"Contempt":               "😏",
	"Contentment":            "🙂",
	"Craving":                "😋",
	"Desire":                 "😍",
	"Determination":          "💪",
	"Disappointment":         "😞",
	"Disapproval":            "👎",
	"Disgust":                "🤢",
	"Distress":               "😫",
	"Doubt":                  "🤨",
	"Ecstasy":                "😆",
	"Embarrassment":          "😖",
	"Empathic Pain":          "😢",
	"Enthusiasm":             "🎉",
	"Entrancement":           "😮",
	"Envy":                   "😠",
	"Excitement":             "😃",
	"Fear":                   "😨",
	"Gratitude":              "🙏",
	"Guilt":                  "😔",
	"Horror":                 "😱",
	"Interest":               "😃",
	"Joy":                    "😄",
	"Love":                   "❤️",
	"Nostalgia":              "😢",
	"Pain":                   "😣",
	"Pride":                  "😊",
	"Realization":            "😮",
	"Relief":                 "😅",
	"Romance":                "😘",
	"Sadness":                "😥",
	"Sarcasm":                "😏",
	"Satisfaction":           "😌",
	"Shame":                  "😳",
	"Surprise (negative)":    "😮",
	"Surprise (positive)":    "😲",
	"Sympathy":               "😢",
	"Tiredness":              "😴",
	"Triumph":                "🎉",
}

// EmojiFor returns the glyph for a known emotion name.
func EmojiFor(name string) (string, bool) {
	emoji, ok := emotionEmojis[name]
	return emoji, ok
}

func IsKnownEmotion(name string) bool {
	_, ok := emotionEmojis[name]
	return ok
}

// EmotionNames returns the taxonomy sorted by name.
func EmotionNames() []string {
	names := make([]string, 0, len(emotionEmojis))
	for name := range emotionEmojis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DominantEmotion picks the highest scoring known emotion across all
// detections. Ties keep the first maximum in provider order.
func DominantEmotion(detections []EmotionScore) (EmotionScore, bool) {
	var (
		best  EmotionScore
		found bool
	)
	for _, d := range detections {
		if !IsKnownEmotion(d.Name) {
			continue
		}
		if !found || d.Score > best.Score {
			best = d
			found = true
		}
	}
	return best, found
}
