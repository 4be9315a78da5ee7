package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/todoshare/server-go/internal/database"
	"github.com/todoshare/server-go/internal/model"
)

// TodoRepository handles todo row operations.
type TodoRepository interface {
	Create(ctx context.Context, params model.CreateTodoParams) (*model.Todo, error)
	FindByID(ctx context.Context, id int64) (*model.Todo, error)
	FindByOwner(ctx context.Context, userID int64, login string) ([]model.Todo, error)
	FindSharedWith(ctx context.Context, userID int64, login string) ([]model.SharedTodo, error)
	FindAll(ctx context.Context) ([]model.Todo, error)
	SetDone(ctx context.Context, id int64, done bool) error
	SetText(ctx context.Context, id int64, text string) error
	SetTags(ctx context.Context, id int64, tags []string) error
	DeleteCascade(ctx context.Context, id int64) error
	BackfillOwner(ctx context.Context, userID int64, login string) (int64, error)
	OwnerStats(ctx context.Context, userID int64) (total int, owned int, err error)
}

type todoRepo struct {
	db *database.DB
}

// NewTodoRepository creates a new todo repository.
func NewTodoRepository(db *database.DB) TodoRepository {
	return &todoRepo{db: db}
}

func (r *todoRepo) Create(ctx context.Context, params model.CreateTodoParams) (*model.Todo, error) {
	tags, err := marshalList(params.Tags)
	if err != nil {
		return nil, err
	}
	attachments, err := marshalList(params.Attachments)
	if err != nil {
		return nil, err
	}

	var todo model.Todo
	err = r.db.GetContext(ctx, &todo, `
		INSERT INTO todos (text, tags, attachments, user_id, user_login)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.Text, tags, attachments, params.UserID, params.UserLogin)
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (r *todoRepo) FindByID(ctx context.Context, id int64) (*model.Todo, error) {
	var todo model.Todo
	err := r.db.GetContext(ctx, &todo, `SELECT * FROM todos WHERE id = $1`, id)
	return HandleNotFound(&todo, err)
}

// FindByOwner returns rows owned by this login, plus legacy rows that carry
// the numeric user id but predate the user_login column.
func (r *todoRepo) FindByOwner(ctx context.Context, userID int64, login string) ([]model.Todo, error) {
	todos := []model.Todo{}
	err := r.db.SelectContext(ctx, &todos, `
		SELECT * FROM todos
		WHERE user_login = $1 OR (user_login IS NULL AND user_id = $2)
		ORDER BY created_at DESC
	`, login, userID)
	return todos, err
}

func (r *todoRepo) FindSharedWith(ctx context.Context, userID int64, login string) ([]model.SharedTodo, error) {
	todos := []model.SharedTodo{}
	err := r.db.SelectContext(ctx, &todos, `
		SELECT t.*, ts.owner_id AS shared_by
		FROM todos t
		INNER JOIN todo_shares ts ON t.id = ts.todo_id
		WHERE ts.shared_with_id = $1 OR ts.shared_with_login = $2
		ORDER BY t.created_at DESC
	`, fmt.Sprintf("%d", userID), login)
	return todos, err
}

func (r *todoRepo) FindAll(ctx context.Context) ([]model.Todo, error) {
	todos := []model.Todo{}
	err := r.db.SelectContext(ctx, &todos, `SELECT * FROM todos ORDER BY created_at DESC`)
	return todos, err
}

func (r *todoRepo) SetDone(ctx context.Context, id int64, done bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE todos SET done = $1 WHERE id = $2`, done, id)
	return err
}

func (r *todoRepo) SetText(ctx context.Context, id int64, text string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE todos SET text = $1 WHERE id = $2`, text, id)
	return err
}

func (r *todoRepo) SetTags(ctx context.Context, id int64, tags []string) error {
	raw, err := marshalList(tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE todos SET tags = $1 WHERE id = $2`, raw, id)
	return err
}

// DeleteCascade removes the todo and every share grant pointing at it in one
// transaction. The schema has no FK cascade; this is the only delete path.
func (r *todoRepo) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM todo_shares WHERE todo_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
		return err
	})
}

// BackfillOwner assigns ownerless rows to the configured legacy account.
func (r *todoRepo) BackfillOwner(ctx context.Context, userID int64, login string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE todos SET user_id = $1, user_login = $2
		WHERE user_id IS NULL AND user_login IS NULL
	`, userID, login)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *todoRepo) OwnerStats(ctx context.Context, userID int64) (int, int, error) {
	var stats struct {
		Total int `db:"total"`
		Owned int `db:"owned"`
	}
	err := r.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE user_id = $1) AS owned
		FROM todos
	`, userID)
	return stats.Total, stats.Owned, err
}

func marshalList(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb column: %w", err)
	}
	// jsonb columns are NOT NULL; nil slices become empty lists.
	if string(raw) == "null" {
		raw = []byte("[]")
	}
	return raw, nil
}
