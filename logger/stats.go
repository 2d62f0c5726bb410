package logger

import "sync"

// warn/error counters per component, surfaced through Counts for
// health reporting without a metrics backend.
var (
	statsMu     sync.Mutex
	warnCounts  = map[string]int64{}
	errorCounts = map[string]int64{}
)

func recordWarn(component string) {
	statsMu.Lock()
	warnCounts[component]++
	statsMu.Unlock()
}

func recordError(component string) {
	statsMu.Lock()
	errorCounts[component]++
	statsMu.Unlock()
}

// Counts returns the warn and error totals recorded for a component.
func Counts(component string) (warns, errors int64) {
	statsMu.Lock()
	defer statsMu.Unlock()
	return warnCounts[component], errorCounts[component]
}
