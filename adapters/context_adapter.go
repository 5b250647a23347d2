// File: adapters/context_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ContextAdapter implements api.ContextFactory, handing out fresh
// internal/ctxstore.Store instances.

package adapters

import (
	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/internal/ctxstore"
)

// ContextAdapter is the default api.ContextFactory.
type ContextAdapter struct{}

// NewContextAdapter returns a context factory.
func NewContextAdapter() api.ContextFactory {
	return &ContextAdapter{}
}

// NewContext creates a new, empty context store.
func (a *ContextAdapter) NewContext() api.Context {
	return ctxstore.New()
}
