package model

import (
	"encoding/json"
	"time"
)

// Attachment references a blob in the object store.
type Attachment struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Todo is a row in the todos table. Tags and attachments are stored as JSON
// documents in jsonb columns.
type Todo struct {
	ID             int64           `db:"id"`
	Text           string          `db:"text"`
	Done           bool            `db:"done"`
	RawTags        json.RawMessage `db:"tags"`
	RawAttachments json.RawMessage `db:"attachments"`
	UserID         *int64          `db:"user_id"`
	UserLogin      *string         `db:"user_login"`
	CreatedAt      time.Time       `db:"created_at"`
}

// Tags decodes the jsonb tag list, tolerating NULL/empty columns.
func (t *Todo) Tags() []string {
	tags := []string{}
	if len(t.RawTags) > 0 {
		_ = json.Unmarshal(t.RawTags, &tags)
	}
	return tags
}

// Attachments decodes the jsonb attachment list, tolerating NULL/empty columns.
func (t *Todo) Attachments() []Attachment {
	attachments := []Attachment{}
	if len(t.RawAttachments) > 0 {
		_ = json.Unmarshal(t.RawAttachments, &attachments)
	}
	return attachments
}

// SharedTodo is a todo joined with the share grant that makes it visible.
type SharedTodo struct {
	Todo
	SharedBy string `db:"shared_by"`
}

type CreateTodoParams struct {
	Text        string
	Tags        []string
	Attachments []Attachment
	UserID      *int64
	UserLogin   *string
}

type UpdateTodoParams struct {
	Done *bool
	Text *string
	Tags []string
}

// TodoView is the wire representation of a todo, including the share
// annotations the list endpoint returns.
type TodoView struct {
	ID          int64        `json:"id"`
	Text        string       `json:"text"`
	Done        bool         `json:"done"`
	Tags        []string     `json:"tags"`
	Attachments []Attachment `json:"attachments"`
	UserID      *int64       `json:"user_id"`
	UserLogin   *string      `json:"user_login"`
	CreatedAt   time.Time    `json:"created_at"`
	IsShared    bool         `json:"isShared"`
	SharedBy    *string      `json:"sharedBy"`
	Shares      []ShareGrant `json:"shares"`
}
