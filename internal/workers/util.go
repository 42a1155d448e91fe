package workers

import (
	"context"
	"fmt"
	"time"
)

func claimerName(prefix string, id int) string {
	return fmt.Sprintf("%s-%d", prefix, id)
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
