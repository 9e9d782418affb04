//go:build !(darwin || linux)

package engine

import "github.com/gamepilot/gamepilot/internals/engerr"

func newReal(opts Options) (Handle, error) {
	return nil, engerr.New(engerr.KindResource, "engine.load", "real engine backend is not supported on this platform")
}
