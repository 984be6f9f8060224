//go:build !unix

package cli

// manualTriggers has no signal source on this platform.
func manualTriggers() (<-chan struct{}, func()) {
	return nil, func() {}
}
