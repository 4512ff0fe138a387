// Package photo handles Maya's selfie requests: the control marker a reply
// carries, the mood the photo should show, and the clients that fetch or
// generate the image.
package photo

import (
	"context"
	"strings"
)

// Marker is emitted by the chat model when Maya wants to send a photo.
const Marker = "[SEND_PHOTO]"

// Mood is the expression Maya wears in a photo.
type Mood string

const (
	Happy   Mood = "happy"
	Loving  Mood = "loving"
	Playful Mood = "playful"
	Shy     Mood = "shy"
	Angry   Mood = "angry"
	Jealous Mood = "jealous"
	Nakhre  Mood = "nakhre"
	Sad     Mood = "sad"
)

var expressions = map[Mood]string{
	Happy:   "warm genuine smile, sparkling happy eyes, radiant joyful expression, looking directly at camera",
	Loving:  "soft romantic gaze, gentle loving smile, dreamy eyes with affection",
	Playful: "mischievous playful smile, winking one eye, fun teasing expression",
	Shy:     "blushing pink cheeks, looking down slightly with sweet shy smile",
	Angry:   "pouting lips, slightly furrowed brows, cute annoyed expression, arms crossed",
	Jealous: "raised skeptical eyebrow, suspicious narrow eyes, pouty dramatic expression",
	Nakhre:  "dramatic eye roll, hand on hip, sassy annoyed but cute expression",
	Sad:     "slightly teary eyes, pouty sad lips, looking away dramatically",
}

// Requester fetches a photo of Maya in the given mood. It returns an image
// URL, or "" when no image could be produced.
type Requester interface {
	RequestPhoto(ctx context.Context, mood Mood) (string, error)
}

// Requested reports whether reply asks for a photo.
func Requested(reply string) bool {
	return strings.Contains(reply, Marker)
}

// Strip removes every marker from reply. Whitespace runs are collapsed when
// a marker was present so no gap is left where it stood.
func Strip(reply string) string {
	if !Requested(reply) {
		return strings.TrimSpace(reply)
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(reply, Marker, " ")), " ")
}

type moodRule struct {
	mood  Mood
	words []string
}

var replyRules = []moodRule{
	{Angry, []string{"😤", "angry", "gussa"}},
	{Jealous, []string{"🙄", "jealous", "shaq"}},
	{Nakhre, []string{"nakhre", "dramatic"}},
	{Loving, []string{"💕", "love", "pyaar"}},
	{Shy, []string{"shy", "blush"}},
}

// MoodForReply picks the photo mood from the reply that requested it.
func MoodForReply(reply string) Mood {
	lower := strings.ToLower(reply)
	for _, r := range replyRules {
		for _, w := range r.words {
			if strings.Contains(lower, w) {
				return r.mood
			}
		}
	}
	return Happy
}

// Expression returns the facial expression for mood, falling back to Happy.
func Expression(mood Mood) string {
	if e, ok := expressions[mood]; ok {
		return e
	}
	return expressions[Happy]
}

// Prompt builds the image prompt for mood.
func Prompt(mood Mood) string {
	return "Generate a beautiful portrait selfie photo of Maya: a gorgeous 22 year old Indian woman from Delhi. " +
		"She has long flowing black wavy hair, warm expressive brown eyes, light brown glowing skin, " +
		"wearing stylish modern Indian fusion clothes like a crop top or kurti. " +
		"Current mood and expression: " + Expression(mood) + ". " +
		"The photo should look like a natural phone selfie, warm golden hour lighting, authentic candid look. " +
		"Ultra high quality realistic photograph, NOT AI looking, very natural and beautiful."
}
