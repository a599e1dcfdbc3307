package model

import "time"

// Concert is a scheduled event that sells one or more ticket types.
// Concerts are created by administrators; the booking pipeline only
// reads them.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – display title.
//  Description – optional free text.
//  Date        – when the concert takes place (UTC).
//  ImageURL    – optional poster reference.
//  CreatedAt   – creation timestamp.
type Concert struct {
	ID          uint64    `json:"id"`                    // concerts.id
	Title       string    `json:"title"`                 // concerts.title
	Description *string   `json:"description,omitempty"` // concerts.description (nullable)
	Date        time.Time `json:"date"`                  // concerts.date
	ImageURL    *string   `json:"image_url,omitempty"`   // concerts.image_url (nullable)
	CreatedAt   time.Time `json:"created_at"`            // concerts.created_at
}
