package model

import (
	"github.com/dustin/go-humanize"
	"github.com/mdouchement/pastry/pkg/slug"
)

type (
	// A Paste represents one stored content entry (text and/or file).
	Paste struct {
		ID      uint64 `json:"id"      msgpack:"id" storm:"id"`
		Content string `json:"content" msgpack:"content"`
		// File is the optional attachment. At most one per paste.
		File *FileRef `json:"file,omitempty" msgpack:"file"`
		// Extension is the display hint given at creation (e.g. "md", "go").
		Extension string  `json:"extension" msgpack:"extension"`
		Privacy   Privacy `json:"privacy"   msgpack:"privacy"`
		// EncryptedKey holds encrypt(id, passphrase) in readonly mode so a
		// later deletion can prove knowledge of the passphrase. Unused in
		// every other mode.
		EncryptedKey string `json:"-" msgpack:"encrypted_key"`
		// Editable allows deletion without any password.
		Editable bool `json:"editable" msgpack:"editable"`
		// Type is "url" when the content is a single valid URL, else "text".
		Type string `json:"type" msgpack:"type"`

		Created    int64 `json:"created"    msgpack:"created"`
		Expiration int64 `json:"expiration" msgpack:"expiration"` // 0 means never
		LastRead   int64 `json:"last_read"  msgpack:"last_read"`

		ReadCount      uint64 `json:"read_count"       msgpack:"read_count"`
		BurnAfterReads uint64 `json:"burn_after_reads" msgpack:"burn_after_reads"` // 0 means unlimited
	}

	// A FileRef describes a paste's attachment. Locator is the encoded
	// storage locator, not necessarily a plain filename.
	FileRef struct {
		Locator string `json:"locator" msgpack:"locator"`
		Size    uint64 `json:"size"    msgpack:"size"`
	}
)

// Slug returns the paste's URL and attachment-directory identifier.
func (p *Paste) Slug() string {
	return slug.Encode(p.ID)
}

// HasFile returns true when the paste carries an attachment.
func (p *Paste) HasFile() bool {
	return p.File != nil
}

// TotalSize renders the content plus attachment size in a human format.
func (p *Paste) TotalSize() string {
	size := uint64(len(p.Content))
	if p.HasFile() {
		size += p.File.Size
	}
	return humanize.IBytes(size)
}

// Evictable is the lifecycle policy predicate. A paste is evictable when its
// expiration is reached, its read budget is exhausted or it has not been read
// for gcDays days (0 disables the retention window).
func (p *Paste) Evictable(now int64, gcDays uint64) bool {
	if p.Expiration != 0 && p.Expiration <= now {
		return true
	}
	if p.BurnAfterReads != 0 && p.ReadCount >= p.BurnAfterReads {
		return true
	}
	if gcDays != 0 && now-p.LastRead >= int64(gcDays)*86400 {
		return true
	}
	return false
}
