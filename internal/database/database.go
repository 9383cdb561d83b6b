// Package database mirrors the in-memory paste collection to a durable
// index so it survives restarts. It is a plain upsert/delete interface keyed
// by the paste id.
package database

import "github.com/mdouchement/pastry/internal/model"

// A Client can interact with the durable index.
type Client interface {
	// SavePaste inserts or updates the given paste.
	SavePaste(p *model.Paste) error
	// DeletePaste deletes the paste with the given id.
	DeletePaste(id uint64) error
	// FindPaste returns the paste for the given id.
	FindPaste(id uint64) (*model.Paste, error)
	// FindAllPastes returns the whole collection, used to reload the
	// in-memory store at startup.
	FindAllPastes() ([]*model.Paste, error)
	// Close the database.
	Close() error
	// IsNotFound returns true if err is a not found error.
	IsNotFound(err error) bool
}
