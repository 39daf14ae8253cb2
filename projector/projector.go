// Package projector holds client-local board and message state. Local
// mutations apply optimistically; authoritative snapshots from the
// server always replace optimistic state wholesale, never merged
// field by field.
package projector

import (
	"fmt"
	"sync"

	"zapflow/models"
)

// Projector is the client-side state holder backing the board UI.
type Projector struct {
	mu       sync.Mutex
	board    models.BoardView
	messages map[string][]models.Message
	seen     map[string]struct{}
	draft    string
}

func New() *Projector {
	return &Projector{
		messages: make(map[string][]models.Message),
		seen:     make(map[string]struct{}),
	}
}

// Board returns a deep copy of the current board state.
func (p *Projector) Board() models.BoardView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneBoard(p.board)
}

// ReconcileBoard replaces local state with an authoritative snapshot.
func (p *Projector) ReconcileBoard(view models.BoardView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board = cloneBoard(view)
}

// ApplyMove optimistically splices the contact out of its current
// column and onto the head of the target column. The returned restore
// function puts back the exact pre-move board; call it when the server
// rejects the move. Full-snapshot rollback avoids partial-undo bugs.
func (p *Projector) ApplyMove(contactID, targetColumnID string) (restore func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := cloneBoard(p.board)

	var moved *models.Contact
	sourceIdx, targetIdx := -1, -1
	for i := range p.board {
		if p.board[i].ID == targetColumnID {
			targetIdx = i
		}
		for j := range p.board[i].Items {
			if p.board[i].Items[j].ID == contactID {
				moved = &p.board[i].Items[j]
				sourceIdx = i
			}
		}
	}
	if moved == nil {
		return nil, fmt.Errorf("contact %s not on board", contactID)
	}
	if targetIdx == -1 {
		return nil, fmt.Errorf("column %s not on board", targetColumnID)
	}

	card := *moved
	card.ColumnID = targetColumnID

	src := &p.board[sourceIdx]
	for j := range src.Items {
		if src.Items[j].ID == contactID {
			src.Items = append(src.Items[:j], src.Items[j+1:]...)
			break
		}
	}
	src.Count = len(src.Items)

	dst := &p.board[targetIdx]
	dst.Items = append([]models.Contact{card}, dst.Items...)
	dst.Count = len(dst.Items)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.board = snapshot
	}, nil
}

// ApplyMessage appends a message to the contact's local history.
// Returns false when the message id is already known, e.g. the
// sender's own echo arriving over the fan-out channel.
func (p *Projector) ApplyMessage(msg models.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[msg.ID]; ok {
		return false
	}
	p.seen[msg.ID] = struct{}{}
	p.messages[msg.ContactID] = append(p.messages[msg.ContactID], msg)
	return true
}

// Messages returns a copy of the local history for a contact.
func (p *Projector) Messages(contactID string) []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Message, len(p.messages[contactID]))
	copy(out, p.messages[contactID])
	return out
}

// SetDraft stores the composer text.
func (p *Projector) SetDraft(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft = text
}

// TakeDraft clears the composer and returns the text to send.
func (p *Projector) TakeDraft() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	text := p.draft
	p.draft = ""
	return text
}

// RestoreDraft puts failed text back in the composer so the operator
// can retry instead of retyping.
func (p *Projector) RestoreDraft(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft = text
}

// Draft returns the current composer text.
func (p *Projector) Draft() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

func cloneBoard(view models.BoardView) models.BoardView {
	if view == nil {
		return nil
	}
	out := make(models.BoardView, len(view))
	for i, col := range view {
		items := make([]models.Contact, len(col.Items))
		copy(items, col.Items)
		for j := range items {
			tags := make([]models.Tag, len(items[j].Tags))
			copy(tags, items[j].Tags)
			items[j].Tags = tags
		}
		col.Items = items
		out[i] = col
	}
	return out
}
