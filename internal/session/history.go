package session

import (
	"fmt"
	"sync"
)

// Command is one undoable step
type Command interface {
	Name() string
	Undo() error
	Redo() error
}

// DiffCommand records the regions a batch added to or removed from a
// playlist.
type DiffCommand struct {
	sess     *Session
	name     string
	Playlist ID
	Added    []ID
	Removed  []ID
}

func (c *DiffCommand) Name() string {
	if c.name == "" {
		return "playlist change"
	}
	return c.name
}

func (c *DiffCommand) SetName(name string) { c.name = name }

func (c *DiffCommand) Undo() error {
	pl, err := c.sess.Playlist(c.Playlist)
	if err != nil {
		return err
	}
	for _, id := range c.Added {
		if err := pl.RemoveRegion(id); err != nil {
			return fmt.Errorf("undo %s: %w", c.Name(), err)
		}
	}
	for _, id := range c.Removed {
		pl.restoreRegion(id)
	}
	return nil
}

func (c *DiffCommand) Redo() error {
	pl, err := c.sess.Playlist(c.Playlist)
	if err != nil {
		return err
	}
	for _, id := range c.Removed {
		if err := pl.RemoveRegion(id); err != nil {
			return fmt.Errorf("redo %s: %w", c.Name(), err)
		}
	}
	for _, id := range c.Added {
		pl.restoreRegion(id)
	}
	return nil
}

// History is the session's undo/redo stack
type History struct {
	mu   sync.Mutex
	undo []Command
	redo []Command
}

// Add pushes a command and clears the redo stack
func (h *History) Add(cmd Command) {
	if cmd == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = append(h.undo, cmd)
	h.redo = nil
}

func (h *History) Undo() (string, error) {
	h.mu.Lock()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return "", fmt.Errorf("nothing to undo")
	}
	cmd := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.mu.Unlock()

	if err := cmd.Undo(); err != nil {
		return cmd.Name(), err
	}

	h.mu.Lock()
	h.redo = append(h.redo, cmd)
	h.mu.Unlock()
	return cmd.Name(), nil
}

func (h *History) Redo() (string, error) {
	h.mu.Lock()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return "", fmt.Errorf("nothing to redo")
	}
	cmd := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.mu.Unlock()

	if err := cmd.Redo(); err != nil {
		return cmd.Name(), err
	}

	h.mu.Lock()
	h.undo = append(h.undo, cmd)
	h.mu.Unlock()
	return cmd.Name(), nil
}

func (h *History) UndoDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo)
}

func (h *History) RedoDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo)
}
