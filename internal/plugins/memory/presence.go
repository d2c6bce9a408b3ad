package memory

import (
	"sync"

	"chatpulse/internal/core/domain"
)

// PresenceMap is the process-local presence store. A single mutex guards the
// map; Upsert/Mutate run their callback under it, which gives the per-key
// read-modify-write atomicity the engine relies on when handlers interleave
// around store calls.
type PresenceMap struct {
	mu      sync.Mutex
	records map[string]*domain.PresenceRecord
}

func NewPresenceMap() *PresenceMap {
	return &PresenceMap{records: make(map[string]*domain.PresenceRecord)}
}

func (p *PresenceMap) Get(userID string) (domain.PresenceRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[userID]
	if !ok {
		return domain.PresenceRecord{}, false
	}
	return *rec, true
}

func (p *PresenceMap) Upsert(userID string, fn func(rec *domain.PresenceRecord, existed bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[userID]
	if !ok {
		rec = &domain.PresenceRecord{UserID: userID}
		p.records[userID] = rec
	}
	fn(rec, ok)
}

func (p *PresenceMap) Mutate(userID string, fn func(rec *domain.PresenceRecord)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[userID]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

func (p *PresenceMap) Delete(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, userID)
}

func (p *PresenceMap) Range(fn func(rec domain.PresenceRecord) bool) {
	p.mu.Lock()
	snapshot := make([]domain.PresenceRecord, 0, len(p.records))
	for _, rec := range p.records {
		snapshot = append(snapshot, *rec)
	}
	p.mu.Unlock()
	for _, rec := range snapshot {
		if !fn(rec) {
			return
		}
	}
}
