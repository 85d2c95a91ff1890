//go:build !linux

package relay

func New(opts Options) (*Reactor, error) {
	return nil, ErrUnsupportedPlatform
}
