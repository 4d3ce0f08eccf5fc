// package models defines the data model for the channel authorization and upload core
package models

import (
	"time"
)

// Model is a ledger row with identity, insertion order and soft-delete timestamps.
type Model interface {
	ID() string
	Sequence() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	DeletedAt() *time.Time // nil while the row is live
	Validate() error
}

// Repository is the storage contract for one [Model] type. Get, Update and Delete ignore soft-deleted rows.
//
// List criteria keys are repository specific and absent keys do not filter.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
