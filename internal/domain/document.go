package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is a single unit of content queued for push replication.
type Document struct {
	// ID identifies the document within its owning collection.
	ID string

	// Revision is the document's revision tag, opaque to the dispatch core.
	Revision string

	// Body is the document's serialized content.
	Body []byte

	// QueuedAt records when the document was handed to the replicator.
	QueuedAt time.Time
}

// NewDocument builds a Document, assigning a fresh ID if none is supplied.
func NewDocument(id, revision string, body []byte) Document {
	if id == "" {
		id = uuid.NewString()
	}
	return Document{
		ID:       id,
		Revision: revision,
		Body:     body,
		QueuedAt: time.Now(),
	}
}

// PushResult is the outcome of delivering a group of documents to a remote
// endpoint.
type PushResult struct {
	// Accepted lists the IDs of documents the endpoint accepted.
	Accepted []string

	// Rejected maps document ID to the reason the endpoint rejected it.
	Rejected map[string]string

	// StatusCode is the transport-level status of the delivery, when
	// applicable (e.g. an HTTP status code).
	StatusCode int
}
