//go:build !malgo

package mic

import (
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/maya-go/pkg/plugin"
)

func TestStubRegistered(t *testing.T) {
	is := is.New(t)
	_, ok := plugin.Lookup(plugin.KindMic, "malgo")
	is.True(ok)
	_, err := plugin.NewMicrophone("malgo", nil)
	is.True(err != nil)
}
