package reporter

import (
	"fmt"
	"time"

	"github.com/konveyor/awty/progress"
)

// normalize updates the event with calculated values.
// - Sets Timestamp to now if zero
// - Calculates Percent from Current/Total if Percent is zero and Total > 0
// - Fills Error from Err
func normalize(e *progress.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	// Auto-calculate percent if not set and we have total
	if e.Percent == 0 && e.Total > 0 {
		e.Percent = progress.PercentComplete(e.Current, e.Total)
	}

	if e.Error == "" && e.Err != nil {
		e.Error = e.Err.Error()
	}
}

// operationKey identifies the operation an event belongs to.
func operationKey(e progress.Event) string {
	return e.ContextID + "/" + e.Operation
}

// title returns the display name of the event's operation, truncated to max runes.
func title(e progress.Event, max int) string {
	name := e.Operation
	if name == "" {
		name = "operation"
	}
	runes := []rune(name)
	if len(runes) > max {
		name = string(runes[:max-3]) + "..."
	}
	return name
}

// formatBytes renders n using binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
