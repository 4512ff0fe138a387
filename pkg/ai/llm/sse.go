package llm

import (
	"strings"

	"github.com/bytedance/sonic"
	openai "github.com/sashabaranov/go-openai"
)

const doneSentinel = "[DONE]"

// lineDecoder turns event-stream bytes into content deltas.
//
// Only "data: " lines carry payloads. A payload that fails to parse is put
// back at the head of the buffer and decoding stops until more bytes
// arrive. Flush gives such lines one last try at end of stream and drops
// the ones that still fail.
type lineDecoder struct {
	buf  string
	done bool
}

// Write appends a chunk and returns the deltas it completed.
func (d *lineDecoder) Write(chunk []byte) []string {
	if d.done {
		return nil
	}
	d.buf += string(chunk)
	return d.drain(false)
}

// Flush decodes whatever is left once the body is exhausted, including a
// final line without a trailing newline.
func (d *lineDecoder) Flush() []string {
	if d.done {
		return nil
	}
	if d.buf != "" && !strings.HasSuffix(d.buf, "\n") {
		d.buf += "\n"
	}
	out := d.drain(true)
	d.buf = ""
	return out
}

// Done reports whether the end-of-stream sentinel was seen.
func (d *lineDecoder) Done() bool { return d.done }

func (d *lineDecoder) drain(final bool) []string {
	var out []string
	for !d.done {
		idx := strings.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimSpace(line[len("data: "):])
		if payload == doneSentinel {
			d.done = true
			break
		}

		content, ok := parseDelta(payload)
		if !ok {
			if final {
				continue
			}
			d.buf = line + "\n" + d.buf
			break
		}
		if content != "" {
			out = append(out, content)
		}
	}
	return out
}

func parseDelta(payload string) (string, bool) {
	var resp openai.ChatCompletionStreamResponse
	if err := sonic.UnmarshalString(payload, &resp); err != nil {
		return "", false
	}
	if len(resp.Choices) == 0 {
		return "", true
	}
	return resp.Choices[0].Delta.Content, true
}
