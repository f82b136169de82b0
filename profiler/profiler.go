package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/PlakarLabs/tilediff/logging"
)

type stats struct {
	count uint64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

type profiler struct {
	muProfiler sync.Mutex
	events     map[string]*stats
}

var profilerSingleton = &profiler{
	events: make(map[string]*stats),
}

func RecordEvent(event string, duration time.Duration) {
	profilerSingleton.muProfiler.Lock()
	defer profilerSingleton.muProfiler.Unlock()

	s, exists := profilerSingleton.events[event]
	if !exists {
		s = &stats{min: duration, max: duration}
		profilerSingleton.events[event] = s
	}
	s.count++
	s.total += duration
	if duration < s.min {
		s.min = duration
	}
	if duration > s.max {
		s.max = duration
	}
}

// Count reports how many times event was recorded.
func Count(event string) uint64 {
	profilerSingleton.muProfiler.Lock()
	defer profilerSingleton.muProfiler.Unlock()

	if s, exists := profilerSingleton.events[event]; exists {
		return s.count
	}
	return 0
}

func Reset() {
	profilerSingleton.muProfiler.Lock()
	defer profilerSingleton.muProfiler.Unlock()

	profilerSingleton.events = make(map[string]*stats)
}

// Display writes one line per event, sorted by name.
func Display(logger *logging.Logger) {
	profilerSingleton.muProfiler.Lock()
	defer profilerSingleton.muProfiler.Unlock()

	names := make([]string, 0, len(profilerSingleton.events))
	for event := range profilerSingleton.events {
		names = append(names, event)
	}
	sort.Strings(names)

	for _, event := range names {
		s := profilerSingleton.events[event]
		avg := time.Duration(uint64(s.total) / s.count)
		logger.Profile("%s: calls=%d, min=%s, avg=%s, max=%s, total=%s", event, s.count, s.min, avg, s.max, s.total)
	}
}
