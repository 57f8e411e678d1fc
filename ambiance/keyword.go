package ambiance

import (
	"context"
	"regexp"
	"strings"
)

const (
	keywordExcerptLen = 1000
	readingSuffix     = " suitable for reading background music, instrumental without vocals"
)

type moodRule struct {
	mood     string
	keywords []string
	prompt   string
	pattern  *regexp.Regexp
}

// moodRules are checked in order; on a tie the earlier mood wins.
var moodRules = []moodRule{
	{
		mood:     "happy",
		keywords: []string{"happy", "joy", "laugh", "smile", "delight", "cheerful", "merry"},
		prompt:   "Uplifting, cheerful background music with major keys and a moderate tempo",
	},
	{
		mood:     "sad",
		keywords: []string{"sad", "sorrow", "grief", "weep", "tear", "mourn", "melancholy"},
		prompt:   "Melancholic, emotional background music with minor keys and a slow tempo",
	},
	{
		mood:     "tense",
		keywords: []string{"fear", "danger", "threat", "worry", "anxious", "terror", "horror"},
		prompt:   "Suspenseful, tense background music with dissonant chords and a building rhythm",
	},
	{
		mood:     "peaceful",
		keywords: []string{"peace", "calm", "tranquil", "serene", "gentle", "quiet", "still"},
		prompt:   "Calm, serene background music with soft instruments and a slow, flowing tempo",
	},
	{
		mood:     "exciting",
		keywords: []string{"adventure", "thrill", "exciting", "action", "rush", "speed", "chase"},
		prompt:   "Energetic, adventurous background music with a fast tempo and strong rhythms",
	},
	{
		mood:     "romantic",
		keywords: []string{"love", "romance", "passion", "embrace", "kiss", "tender", "affection"},
		prompt:   "Tender, emotional background music with string instruments and a gentle melody",
	},
	{
		mood:     "mysterious",
		keywords: []string{"mystery", "secret", "unknown", "strange", "curious", "wonder", "enigma"},
		prompt:   "Intriguing, enigmatic background music with unusual harmonies and a moderate tempo",
	},
}

const neutralMusicPrompt = "Balanced, subtle background music with a mix of instruments and a moderate tempo"

func init() {
	for i := range moodRules {
		moodRules[i].pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(moodRules[i].keywords, "|") + `)\b`)
	}
}

// KeywordAnalyzer picks the mood whose keywords occur most often as whole
// words in the first 1000 characters. It never fails.
type KeywordAnalyzer struct{}

func (KeywordAnalyzer) Analyze(_ context.Context, text string) (Result, error) {
	mood, prompt := MusicPrompt(text)
	return Result{
		Mood:           mood,
		Setting:        "unspecified",
		AmbiancePrompt: prompt,
	}, nil
}

// MusicPrompt returns the dominant mood of text and a music prompt for it.
func MusicPrompt(text string) (mood, prompt string) {
	excerpt := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if r := []rune(excerpt); len(r) > keywordExcerptLen {
		excerpt = string(r[:keywordExcerptLen])
	}

	mood, prompt = MoodNeutral, neutralMusicPrompt
	best := 0
	for _, rule := range moodRules {
		if n := len(rule.pattern.FindAllStringIndex(excerpt, -1)); n > best {
			best = n
			mood, prompt = rule.mood, rule.prompt
		}
	}
	return mood, prompt + readingSuffix
}
