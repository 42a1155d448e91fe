package transport

import "fmt"

var (
	errChallengePage = fmt.Errorf("transport: challenge page detected, no browser pool configured")
	errNoBrowserPool = fmt.Errorf("transport: use_browser requested but no browser pool configured")
)

func errStatus(code int) error {
	return fmt.Errorf("transport: response status %d", code)
}
