package models

import (
	"time"

	"github.com/google/uuid"
)

// StorageType describes how a dataset's content is delivered to consumers
type StorageType string

const (
	StorageTypeFile        StorageType = "FILE"
	StorageTypeExternalAPI StorageType = "EXTERNAL_API"
	StorageTypeDBView      StorageType = "DB_VIEW" // reserved, not dispatchable yet
)

// DatasetStatus represents the lifecycle state of a dataset
type DatasetStatus string

const (
	DatasetStatusActive   DatasetStatus = "ACTIVE"
	DatasetStatusArchived DatasetStatus = "ARCHIVED"
)

// Dataset represents a shared dataset offered by a provider organization.
// Catalog CRUD lives outside this service; the control plane only reads datasets.
type Dataset struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	ProviderID  uuid.UUID     `json:"provider_id" db:"provider_id"`
	StorageType StorageType   `json:"storage_type" db:"storage_type"`
	StorageURI  string        `json:"storage_uri" db:"storage_uri"`
	Published   bool          `json:"published" db:"published"`
	Blocked     bool          `json:"blocked" db:"blocked"`
	Status      DatasetStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// Available reports whether the dataset may currently be consumed
func (d *Dataset) Available() bool {
	return d.Status == DatasetStatusActive && !d.Blocked && d.Published
}
