package cache

import "context"

// Noop implements Store with caching disabled: every read is a miss and every
// write is discarded. The gateway pipeline stays identical whether caching is
// on or off.
type Noop struct{}

// NewNoop creates a disabled cache store.
func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Set(context.Context, string, string) error         { return nil }
func (Noop) Has(context.Context, string) (bool, error)         { return false, nil }
func (Noop) Delete(context.Context, string) error              { return nil }
func (Noop) Clear(context.Context) error                       { return nil }
func (Noop) Len(context.Context) (int, error)                  { return 0, nil }
func (Noop) Close() error                                      { return nil }
