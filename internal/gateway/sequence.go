package gateway

// sequencer hands out per-entity mutation numbers. A rollback is applied only
// by the mutation holding the latest number for its entity, so a failure that
// arrives after a newer mutation does not undo the newer state.
//
// Callers hold Gateway.mu.
type sequencer struct {
	last map[string]uint64
}

func newSequencer() *sequencer {
	return &sequencer{last: make(map[string]uint64)}
}

func (s *sequencer) next(key string) uint64 {
	s.last[key]++
	return s.last[key]
}

func (s *sequencer) isLatest(key string, n uint64) bool {
	return s.last[key] == n
}

func taskKey(id string) string    { return "task:" + id }
func sectionKey(id string) string { return "section:" + id }
