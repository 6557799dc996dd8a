// Package driven defines the interfaces the core depends on:
// vendor batch clients, the batch status store and the prompt store.
// Adapters under internal/adapters/driven implement them.
package driven
