// Package grid is the spatial placement engine behind the community bubble:
// a fixed Cols×Rows grid of rooms with 1-, 2- or 4-cell footprints, drag
// moves with occupant swapping, and synchronous persistence so the
// arrangement survives reloads.
package grid

import (
	"errors"
	"fmt"

	"chessroam/internal/storage"
)

const (
	// DefaultCols and DefaultRows match the production bubble layout.
	DefaultCols = 4
	DefaultRows = 4

	// MaxPinnedChats bounds the quick-access chat list.
	MaxPinnedChats = 5
)

// ErrOverlap is returned by SetSize when growth validation is enabled and
// the new footprint would cover another room's cells.
var ErrOverlap = errors.New("grid: footprint would overlap another room")

// Placement is one room's slot in the grid.
type Placement struct {
	RoomID       string `json:"roomId"`
	Pinned       bool   `json:"pinned"`
	Size         int    `json:"size"`         // 1, 2 or 4 cells
	GridPosition int    `json:"gridPosition"` // 0-based row-major index
}

// storedPlacement tolerates older records missing newer fields.
type storedPlacement struct {
	RoomID       string `json:"roomId"`
	Pinned       bool   `json:"pinned"`
	Size         *int   `json:"size"`
	GridPosition *int   `json:"gridPosition"`
}

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	Cols int
	Rows int
	// ValidateGrowth rejects SetSize calls whose grown footprint would
	// overlap another room. Off by default: the shipped behavior grows in
	// place without checking, and consumers that want the historical
	// semantics keep it that way.
	ValidateGrowth bool
}

// Engine owns the placement list for one user session. It is not safe for
// concurrent use; the single client session drives it from one goroutine.
type Engine struct {
	cols, rows     int
	validateGrowth bool
	placements     []Placement
	store          *storage.Store
}

// NewEngine loads any persisted arrangement from store and returns the
// engine. Older stored records missing size or position are migrated with
// size=1 and gridPosition=index.
func NewEngine(store *storage.Store, opts Options) *Engine {
	if opts.Cols == 0 {
		opts.Cols = DefaultCols
	}
	if opts.Rows == 0 {
		opts.Rows = DefaultRows
	}
	e := &Engine{cols: opts.Cols, rows: opts.Rows, validateGrowth: opts.ValidateGrowth, store: store}
	var stored []storedPlacement
	if store != nil && store.Get(storage.KeyGridPlacements, &stored) {
		for i, sp := range stored {
			p := Placement{RoomID: sp.RoomID, Pinned: sp.Pinned, Size: 1, GridPosition: i}
			if sp.Size != nil {
				p.Size = *sp.Size
			}
			if sp.GridPosition != nil {
				p.GridPosition = *sp.GridPosition
			}
			e.placements = append(e.placements, p)
		}
	}
	return e
}

// Cells returns the total cell count.
func (e *Engine) Cells() int { return e.cols * e.rows }

// Footprint lists the cells a room of the given size occupies from home
// position pos. Cells that would fall past the right edge or bottom row are
// omitted; there is no wraparound, so a size-2 room homed in the last column
// effectively shrinks to one cell.
func (e *Engine) Footprint(pos, size int) []int {
	cells := []int{pos}
	col := pos % e.cols
	row := pos / e.cols
	lastCol := col == e.cols-1
	lastRow := row == e.rows-1
	if size >= 2 && !lastCol {
		cells = append(cells, pos+1)
	}
	if size == 4 {
		if !lastRow {
			cells = append(cells, pos+e.cols)
		}
		if !lastCol && !lastRow {
			cells = append(cells, pos+e.cols+1)
		}
	}
	return cells
}

// occupied returns the set of cells covered by every placement, optionally
// excluding one room.
func (e *Engine) occupied(excludeRoomID string) map[int]bool {
	cells := make(map[int]bool)
	for _, p := range e.placements {
		if p.RoomID == excludeRoomID {
			continue
		}
		for _, c := range e.Footprint(p.GridPosition, p.Size) {
			cells[c] = true
		}
	}
	return cells
}

// AddRoom places roomID at the first cell, in row-major order, not covered
// by any existing footprint. Adding an already-present room is a no-op.
func (e *Engine) AddRoom(roomID string) error {
	if e.find(roomID) != nil {
		return nil
	}
	taken := e.occupied("")
	for pos := 0; pos < e.Cells(); pos++ {
		if !taken[pos] {
			e.placements = append(e.placements, Placement{RoomID: roomID, Size: 1, GridPosition: pos})
			return e.persist()
		}
	}
	return fmt.Errorf("grid: no free cell for room %s", roomID)
}

// SetSize changes the room's footprint in place. With ValidateGrowth off the
// grown footprint may silently cover another room's cells, matching the
// shipped behavior.
func (e *Engine) SetSize(roomID string, size int) error {
	if size != 1 && size != 2 && size != 4 {
		return fmt.Errorf("grid: invalid size %d", size)
	}
	p := e.find(roomID)
	if p == nil {
		return fmt.Errorf("grid: unknown room %s", roomID)
	}
	if e.validateGrowth && size > p.Size {
		taken := e.occupied(roomID)
		for _, c := range e.Footprint(p.GridPosition, size) {
			if taken[c] {
				return ErrOverlap
			}
		}
	}
	p.Size = size
	return e.persist()
}

// RemoveRoom deletes the placement entirely.
func (e *Engine) RemoveRoom(roomID string) error {
	for i, p := range e.placements {
		if p.RoomID == roomID {
			e.placements = append(e.placements[:i], e.placements[i+1:]...)
			return e.persist()
		}
	}
	return nil
}

// TogglePin flips the room's pinned flag. Pinning is independent of grid
// position.
func (e *Engine) TogglePin(roomID string) error {
	p := e.find(roomID)
	if p == nil {
		return fmt.Errorf("grid: unknown room %s", roomID)
	}
	p.Pinned = !p.Pinned
	if e.store != nil {
		_ = e.store.Put(storage.KeyPinnedChats, e.PinnedRoomIDs())
	}
	return e.persist()
}

// PinnedRoomIDs returns pinned room ids for the quick-access chat list,
// capped at MaxPinnedChats.
func (e *Engine) PinnedRoomIDs() []string {
	ids := make([]string, 0, MaxPinnedChats)
	for _, p := range e.placements {
		if p.Pinned {
			ids = append(ids, p.RoomID)
			if len(ids) == MaxPinnedChats {
				break
			}
		}
	}
	return ids
}

// DragEnd resolves a drag gesture ending on targetCell. If targetCell is the
// home position of a different room the two placements swap positions,
// keeping each room's own size and pin. Otherwise the active room moves to
// targetCell unconditionally; a cell covered only by another room's
// secondary footprint is not protected, matching the shipped behavior.
func (e *Engine) DragEnd(activeRoomID string, targetCell int) error {
	if targetCell < 0 || targetCell >= e.Cells() {
		return fmt.Errorf("grid: target cell %d out of range", targetCell)
	}
	active := e.find(activeRoomID)
	if active == nil {
		return fmt.Errorf("grid: unknown room %s", activeRoomID)
	}
	for i := range e.placements {
		other := &e.placements[i]
		if other.RoomID != activeRoomID && other.GridPosition == targetCell {
			other.GridPosition, active.GridPosition = active.GridPosition, targetCell
			return e.persist()
		}
	}
	active.GridPosition = targetCell
	return e.persist()
}

// Placements returns a copy of the current arrangement.
func (e *Engine) Placements() []Placement {
	out := make([]Placement, len(e.placements))
	copy(out, e.placements)
	return out
}

func (e *Engine) find(roomID string) *Placement {
	for i := range e.placements {
		if e.placements[i].RoomID == roomID {
			return &e.placements[i]
		}
	}
	return nil
}

func (e *Engine) persist() error {
	if e.store == nil {
		return nil
	}
	return e.store.Put(storage.KeyGridPlacements, e.placements)
}
