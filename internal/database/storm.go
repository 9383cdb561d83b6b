package database

import (
	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/mdouchement/pastry/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.Init(&model.Paste{})
	return errors.Wrap(err, "could not init paste index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.ReIndex(&model.Paste{})
	return errors.Wrap(err, "could not reindex pastes")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// SavePaste inserts or updates the entry in database with the given paste.
func (c *strm) SavePaste(p *model.Paste) error {
	return errors.Wrap(c.db.Save(p), "could not save the paste")
}

// DeletePaste deletes the entry in database with the given id.
func (c *strm) DeletePaste(id uint64) error {
	err := c.db.DeleteStruct(&model.Paste{ID: id})
	if err == storm.ErrNotFound {
		// Removing an already reclaimed row keeps the index consistent.
		return nil
	}
	return errors.Wrap(err, "could not delete the paste")
}

// FindPaste returns the paste for the given id.
func (c *strm) FindPaste(id uint64) (*model.Paste, error) {
	var paste model.Paste
	if err := c.db.One("ID", id, &paste); err != nil {
		return nil, errors.Wrap(err, "find paste by id")
	}
	return &paste, nil
}

// FindAllPastes returns all the stored pastes.
func (c *strm) FindAllPastes() ([]*model.Paste, error) {
	pastes := make([]*model.Paste, 0)
	err := c.db.All(&pastes)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find pastes")
	}
	return pastes, nil
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}
