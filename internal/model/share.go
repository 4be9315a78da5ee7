package model

import "time"

// ShareGrant authorizes a non-owner identity to see a todo and toggle its
// completion. Unique per (todo_id, shared_with_id); rows are removed
// explicitly when the todo is deleted, there is no FK cascade.
type ShareGrant struct {
	ID              int64     `db:"id" json:"-"`
	TodoID          int64     `db:"todo_id" json:"todo_id"`
	OwnerID         string    `db:"owner_id" json:"owner_id"`
	SharedWithID    string    `db:"shared_with_id" json:"shared_with_id"`
	SharedWithLogin *string   `db:"shared_with_login" json:"shared_with_login"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type CreateShareParams struct {
	TodoID          int64
	OwnerID         string
	SharedWithID    string
	SharedWithLogin string
}
