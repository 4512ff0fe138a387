//go:build !malgo

package openai

import "fmt"

func newPlayer() (Player, error) {
	return nil, fmt.Errorf("speaker playback not available (build with -tags=malgo)")
}
