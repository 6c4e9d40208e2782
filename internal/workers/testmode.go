package workers

import (
	"fmt"
	"sync/atomic"
)

// Test-mode post ids come from a process-local counter well above any real
// site's ids so placeholders are easy to spot and never negative.
const testPostIDBase = 9000000

var testPostIDs atomic.Int64

func nextTestPostID() int64 {
	return testPostIDBase + testPostIDs.Add(1)
}

func placeholderURL(kind, id string) string {
	return fmt.Sprintf("https://placeholder.test/%s/%s", kind, id)
}
