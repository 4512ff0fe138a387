// Package mood infers Maya's avatar mood from conversation text.
package mood

import "strings"

// Mood is the avatar expression.
type Mood string

const (
	Angry    Mood = "angry"
	Jealous  Mood = "jealous"
	Childish Mood = "childish"
	Loving   Mood = "loving"
)

// Default is the mood when nothing matches.
const Default = Loving

var keywords = []struct {
	mood  Mood
	words []string
}{
	{Angry, []string{"gussa", "angry", "naraz", "ignore", "late", "kyu nahi", "bhool gaye", "change ho gaye", "hmph", "irritated"}},
	{Jealous, []string{"kaun thi", "who is she", "ladki", "girl", "friend ki", "usse baat", "flirt", "ex"}},
	{Childish, []string{"nahi", "bas", "please", "sorry", "miss you", "baat nahi", "attention", "bore"}},
	{Loving, []string{"janu", "babu", "love", "pyaar", "miss", "cute", "achi", "sweet", "pagal", "💕", "❤️"}},
}

// Detect returns the first mood, in priority order angry, jealous,
// childish, loving, with a keyword contained in text.
func Detect(text string) Mood {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.mood
			}
		}
	}
	return Default
}
