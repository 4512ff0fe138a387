package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chriscow/maya-go/pkg/ai"
	"github.com/chriscow/maya-go/pkg/ai/llm"
	"github.com/chriscow/maya-go/pkg/mood"
	"github.com/chriscow/maya-go/pkg/photo"
)

const (
	rateLimitReply = "Arre baby, thoda ruko na... Itni jaldi jaldi msg mat karo 🙈 (1 min wait karo)"
	networkReply   = "Network issue hai yaar... Phir se try karo 😔"
	cooldownReply  = "Baby, %ds ruk jao… phir message karna."
	chatCooldown   = 60 * time.Second
)

// chat is the terminal text conversation. Replies stream as they arrive
// and a rate limit blocks new messages until the cooldown passes.
type chat struct {
	relay   llm.Relay
	photos  photo.Requester
	history *llm.History
	out     io.Writer
	now     func() time.Time
	voice   *voiceRecorder // nil when no microphone is configured

	cooldownUntil time.Time
}

func newChat(relay llm.Relay, photos photo.Requester, historyLimit int, out io.Writer) *chat {
	return &chat{
		relay:   relay,
		photos:  photos,
		history: llm.NewHistory(historyLimit),
		out:     out,
		now:     time.Now,
	}
}

// run reads one message per line from in until EOF or ctx is done. The
// line /voice records a spoken message instead.
func (c *chat) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, "Maya: Hiii jaanu! 💕 Kahan the itni der? Miss kar rahi thi tumhe...")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "/voice" {
				if !c.recordVoice(ctx, lines) {
					return nil
				}
				continue
			}
			c.send(ctx, line)
		}
	}
}

// send handles one user message.
func (c *chat) send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if wait := c.cooldownUntil.Sub(c.now()); wait > 0 {
		secs := int((wait + time.Second - 1) / time.Second)
		fmt.Fprintf(c.out, "Maya: "+cooldownReply+"\n", secs)
		return
	}

	c.history.Append(llm.Message{Role: llm.RoleUser, Content: text})

	reply, err := c.stream(ctx)
	if err != nil {
		// Partial replies are discarded along with the failed turn.
		if _, ok := ai.IsRateLimited(err); ok {
			c.cooldownUntil = c.now().Add(chatCooldown)
			fmt.Fprintln(c.out, "\nMaya: "+rateLimitReply)
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(c.out, "\nMaya: "+networkReply)
		return
	}

	c.history.Append(llm.Message{Role: llm.RoleAssistant, Content: reply})
	if m := mood.Detect(text + " " + reply); m != mood.Default {
		fmt.Fprintf(c.out, "(Maya looks %s)\n", m)
	}
	if photo.Requested(reply) && c.photos != nil {
		c.sendPhoto(ctx, reply)
	}
}

// stream prints the reply as it arrives, hiding the photo marker.
func (c *chat) stream(ctx context.Context) (string, error) {
	s, err := c.relay.Send(ctx, c.history.Messages())
	if err != nil {
		return "", err
	}

	fmt.Fprint(c.out, "Maya: ")
	printed := 0
	reply, err := llm.Collect(s, func(_, full string) {
		if shown := visible(full); len(shown) > printed {
			fmt.Fprint(c.out, shown[printed:])
			printed = len(shown)
		}
	})
	if err != nil {
		return "", err
	}
	if rest := strings.ReplaceAll(reply, photo.Marker, ""); len(rest) > printed {
		fmt.Fprint(c.out, rest[printed:])
	}
	fmt.Fprintln(c.out)
	return reply, nil
}

func (c *chat) sendPhoto(ctx context.Context, reply string) {
	m := photo.MoodForReply(reply)
	url, err := c.photos.RequestPhoto(ctx, m)
	if err != nil || url == "" {
		return
	}
	if len(url) > 80 {
		url = url[:80] + "..."
	}
	fmt.Fprintf(c.out, "📸 [%s] %s\n", m, url)
}

// visible returns the printable part of a partial reply: markers removed
// and any trailing text that could still grow into a marker held back.
func visible(partial string) string {
	text := strings.ReplaceAll(partial, photo.Marker, "")
	if i := strings.LastIndexByte(text, '['); i >= 0 && strings.HasPrefix(photo.Marker, text[i:]) {
		text = text[:i]
	}
	return text
}
