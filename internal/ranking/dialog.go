package ranking

import (
	"context"
	"sync"
)

// Editor is what the dialog confirms edits through; *Coordinator is one.
type Editor interface {
	EditItem(ctx context.Context, id string, f Fields) error
}

// Dialog tracks the single item open for editing. It is open exactly when
// an item is selected.
type Dialog struct {
	mu       sync.Mutex
	editor   Editor
	selected *Item
}

func NewDialog(editor Editor) *Dialog {
	return &Dialog{editor: editor}
}

// Open selects c for editing. Drafts and items without id are ignored and
// Open reports false.
func (d *Dialog) Open(c Candidate) bool {
	if c == nil || !c.IsPersisted() {
		return false
	}
	it := c.Snapshot()
	if it.ID == "" {
		return false
	}
	d.mu.Lock()
	d.selected = &it
	d.mu.Unlock()
	return true
}

func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected != nil
}

func (d *Dialog) Selected() (Item, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return Item{}, false
	}
	return *d.selected, true
}

// Confirm submits f for the selected item and closes the dialog, whether or
// not the edit succeeded.
func (d *Dialog) Confirm(ctx context.Context, f Fields) error {
	d.mu.Lock()
	sel := d.selected
	d.selected = nil
	d.mu.Unlock()

	if sel == nil {
		return ErrDialogClosed
	}
	return d.editor.EditItem(ctx, sel.ID, f)
}

func (d *Dialog) Cancel() {
	d.mu.Lock()
	d.selected = nil
	d.mu.Unlock()
}
