// Package middleware decorates a ports.ResultStore: encryption at rest and
// masking of personal data in stored screen logs.
package middleware

import "github.com/ngabopay/ussdpilot/pkg/ports"

// Middleware allows wrapping a ResultStore to add behavior.
type Middleware func(ports.ResultStore) ports.ResultStore

// Chain wraps store so that results pass through mws in order on Save.
func Chain(store ports.ResultStore, mws ...Middleware) ports.ResultStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
