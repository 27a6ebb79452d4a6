package mongoadapter

import (
	"log/slog"

	"github.com/polstore/mongoadapter/store"
)

// Option is a functional option for the Adapter.
type Option func(*Adapter)

// WithStore sets the backing rule store.
func WithStore(s store.Store) Option { return func(a *Adapter) { a.store = s } }

// WithLogger sets the structured logger used for skipped-rule warnings.
func WithLogger(l *slog.Logger) Option { return func(a *Adapter) { a.logger = l } }
