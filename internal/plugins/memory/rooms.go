package memory

import "sync"

// RoomMap tracks which users currently have a conversation open with the
// anchor user. Empty sets are deleted so the map does not grow unbounded.
type RoomMap struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewRoomMap() *RoomMap {
	return &RoomMap{rooms: make(map[string]map[string]struct{})}
}

func (r *RoomMap) Add(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]struct{})
	}
	r.rooms[roomID][userID] = struct{}{}
}

func (r *RoomMap) Remove(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

func (r *RoomMap) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for uid := range members {
		out = append(out, uid)
	}
	return out
}
