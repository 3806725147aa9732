package memory

import (
	"log/slog"
	"sync"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
)

// Conn is a connection handle as seen by the registry.
// Send must not block: it either queues the frame or fails.
type Conn interface {
	ID() string
	Send(frame []byte) error
}

// RoomRegistry maps team id -> set of connections joined to it
type RoomRegistry interface {
	Join(teamID string, conn Conn)
	Leave(teamID string, connID string)

	// BroadcastFrame delivers an encoded frame to every member except excludeID and
	// returns the number of recipients. Callers encode once so the same bytes can be relayed.
	BroadcastFrame(teamID string, frame []byte, excludeID string) int

	Members(teamID string) []string
	RoomCount() int
}

type roomRegistry struct {
	rooms map[string]map[string]Conn
	mu    sync.RWMutex
}

func NewRoomRegistry() RoomRegistry {
	return &roomRegistry{
		rooms: make(map[string]map[string]Conn),
	}
}

func (r *roomRegistry) Join(teamID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[teamID]; !ok {
		r.rooms[teamID] = make(map[string]Conn)
	}

	r.rooms[teamID][conn.ID()] = conn
}

func (r *roomRegistry) Leave(teamID string, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[teamID]
	if !ok {
		return
	}

	delete(members, connID)

	if len(members) == 0 {
		delete(r.rooms, teamID)
	}
}

func (r *roomRegistry) BroadcastFrame(teamID string, frame []byte, excludeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sent := 0

	for id, conn := range r.rooms[teamID] {
		if id == excludeID {
			continue
		}

		if err := conn.Send(frame); err != nil {
			slog.Warn(
				"deliver frame",
				slog.String(constant.ConnID, id),
				slog.String(constant.TeamID, teamID),
				slog.Any(constant.Error, err),
			)
			continue
		}

		sent++
	}

	return sent
}

func (r *roomRegistry) Members(teamID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[teamID]))
	for id := range r.rooms[teamID] {
		members = append(members, id)
	}

	return members
}

func (r *roomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
