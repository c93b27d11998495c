package notify

import "sync/atomic"

// Statistics tracks channel activity with atomic counters.
type Statistics struct {
	loadingShown atomic.Int64
	errorsShown  atomic.Int64
	successShown atomic.Int64
	autoHidden   atomic.Int64
	hidden       atomic.Int64
	staleTimers  atomic.Int64
}

func newStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) recordShown(kind Kind) {
	switch kind {
	case KindLoading:
		s.loadingShown.Add(1)
	case KindError:
		s.errorsShown.Add(1)
	case KindSuccess:
		s.successShown.Add(1)
	}
}

func (s *Statistics) recordAutoHidden() { s.autoHidden.Add(1) }
func (s *Statistics) recordHidden()     { s.hidden.Add(1) }
func (s *Statistics) recordStaleTimer() { s.staleTimers.Add(1) }

// StatsSummary is a point-in-time view of channel statistics.
type StatsSummary struct {
	LoadingShown int64 `json:"loadingShown"`
	ErrorsShown  int64 `json:"errorsShown"`
	SuccessShown int64 `json:"successShown"`
	AutoHidden   int64 `json:"autoHidden"`
	Hidden       int64 `json:"hidden"`
	StaleTimers  int64 `json:"staleTimers"`
}

// Summary returns a consistent snapshot of the counters.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		LoadingShown: s.loadingShown.Load(),
		ErrorsShown:  s.errorsShown.Load(),
		SuccessShown: s.successShown.Load(),
		AutoHidden:   s.autoHidden.Load(),
		Hidden:       s.hidden.Load(),
		StaleTimers:  s.staleTimers.Load(),
	}
}
