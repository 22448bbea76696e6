// Package transcript folds streaming transcript updates into a stable
// display line.
package transcript

import "strings"

// Builder accumulates committed transcript text plus one pending partial
// hypothesis. Each partial replaces the previous pending tail; a final
// commits it.
type Builder struct {
	committed []string
	pending   string
}

// Partial replaces the pending hypothesis.
func (b *Builder) Partial(text string) {
	b.pending = strings.TrimSpace(text)
}

// Final commits text and clears the pending hypothesis. Empty finals are
// dropped.
func (b *Builder) Final(text string) {
	b.pending = ""
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.committed = append(b.committed, text)
}

// String renders committed text followed by the pending hypothesis.
func (b *Builder) String() string {
	parts := make([]string, 0, len(b.committed)+1)
	parts = append(parts, b.committed...)
	if b.pending != "" {
		parts = append(parts, b.pending)
	}
	return strings.Join(parts, " ")
}

// Committed renders only the committed text.
func (b *Builder) Committed() string {
	return strings.Join(b.committed, " ")
}

// Reset clears the builder for the next utterance.
func (b *Builder) Reset() {
	b.committed = nil
	b.pending = ""
}
