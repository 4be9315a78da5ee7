package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/repository"
)

// ExportPayload is the document the export endpoint produces.
type ExportPayload struct {
	ExportTime     string           `json:"exportTime"`
	TotalCount     int              `json:"totalCount"`
	CompletedCount int              `json:"completedCount"`
	PendingCount   int              `json:"pendingCount"`
	Todos          []model.TodoView `json:"todos"`
}

// MigrateResult reports a legacy ownership backfill run.
type MigrateResult struct {
	Updated int64 `json:"updated"`
	Total   int   `json:"total"`
	Owned   int   `json:"owned"`
}

// TodoService enforces the ownership and sharing rules over todo rows.
//
// The rules, in short: anyone (including anonymous visitors) may create;
// only the owner may edit text or tags, share, unshare, or delete; a user
// holding a share grant may additionally toggle completion.
type TodoService struct {
	todos  repository.TodoRepository
	shares repository.ShareRepository
	logger zerolog.Logger
}

func NewTodoService(todos repository.TodoRepository, shares repository.ShareRepository, logger zerolog.Logger) *TodoService {
	return &TodoService{todos: todos, shares: shares, logger: logger}
}

// owns reports whether user is the owner of todo. Login match wins; rows
// from before the user_login column exist only with a numeric id.
func owns(todo *model.Todo, user *model.User) bool {
	if user == nil {
		return false
	}
	if todo.UserLogin != nil {
		return *todo.UserLogin == user.Login
	}
	return todo.UserID != nil && *todo.UserID == user.ID
}

func mustMarshalTags(tags []string) json.RawMessage {
	if tags == nil {
		tags = []string{}
	}
	raw, _ := json.Marshal(tags)
	return raw
}

func toView(todo *model.Todo) model.TodoView {
	return model.TodoView{
		ID:          todo.ID,
		Text:        todo.Text,
		Done:        todo.Done,
		Tags:        todo.Tags(),
		Attachments: todo.Attachments(),
		UserID:      todo.UserID,
		UserLogin:   todo.UserLogin,
		CreatedAt:   todo.CreatedAt,
		Shares:      []model.ShareGrant{},
	}
}

// List returns the todos visible to user: rows they own, annotated with
// outgoing share grants, followed by rows shared with them. Anonymous
// callers see an empty list.
func (s *TodoService) List(ctx context.Context, user *model.User) ([]model.TodoView, error) {
	views := []model.TodoView{}
	if user == nil {
		return views, nil
	}

	own, err := s.todos.FindByOwner(ctx, user.ID, user.Login)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	ids := make([]int64, len(own))
	for i := range own {
		ids[i] = own[i].ID
	}
	grants, err := s.shares.FindByTodoIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	grantsByTodo := make(map[int64][]model.ShareGrant, len(grants))
	for _, g := range grants {
		grantsByTodo[g.TodoID] = append(grantsByTodo[g.TodoID], g)
	}

	for i := range own {
		v := toView(&own[i])
		if gs := grantsByTodo[v.ID]; gs != nil {
			v.Shares = gs
		}
		views = append(views, v)
	}

	shared, err := s.todos.FindSharedWith(ctx, user.ID, user.Login)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	for i := range shared {
		v := toView(&shared[i].Todo)
		v.IsShared = true
		sharedBy := shared[i].SharedBy
		v.SharedBy = &sharedBy
		views = append(views, v)
	}

	return views, nil
}

// Create inserts a todo. Anonymous creation is allowed and produces an
// ownerless row that only the legacy migration can claim later.
func (s *TodoService) Create(ctx context.Context, user *model.User, text string, tags []string, attachments []model.Attachment) (*model.TodoView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.MissingRequired("text")
	}

	params := model.CreateTodoParams{Text: text, Tags: tags, Attachments: attachments}
	if user != nil {
		params.UserID = &user.ID
		params.UserLogin = &user.Login
	}

	todo, err := s.todos.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	v := toView(todo)
	return &v, nil
}

// Update applies a partial update. Text and tag changes are owner-only;
// a done toggle is also allowed for holders of a share grant.
func (s *TodoService) Update(ctx context.Context, user *model.User, id int64, params model.UpdateTodoParams) (*model.TodoView, error) {
	todo, err := s.todos.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if todo == nil {
		return nil, apperrors.NotFound("Todo")
	}

	isOwner := owns(todo, user)
	editsContent := params.Text != nil || params.Tags != nil

	if editsContent && !isOwner {
		return nil, apperrors.Forbidden("Only the owner can edit this todo")
	}
	if params.Done != nil && !isOwner {
		if user == nil {
			return nil, apperrors.Forbidden("Only the owner can edit this todo")
		}
		granted, err := s.shares.ExistsForUser(ctx, id, strconv.FormatInt(user.ID, 10), user.Login)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if !granted {
			return nil, apperrors.Forbidden("You do not have access to this todo")
		}
	}

	if params.Text != nil {
		text := strings.TrimSpace(*params.Text)
		if text == "" {
			return nil, apperrors.MissingRequired("text")
		}
		if err := s.todos.SetText(ctx, id, text); err != nil {
			return nil, apperrors.Database(err)
		}
		todo.Text = text
	}
	if params.Tags != nil {
		if err := s.todos.SetTags(ctx, id, params.Tags); err != nil {
			return nil, apperrors.Database(err)
		}
		todo.RawTags = mustMarshalTags(params.Tags)
	}
	if params.Done != nil {
		if err := s.todos.SetDone(ctx, id, *params.Done); err != nil {
			return nil, apperrors.Database(err)
		}
		todo.Done = *params.Done
	}

	v := toView(todo)
	return &v, nil
}

// Delete removes a todo and its share grants. Owner only; anonymous
// callers get 401 rather than 403 so clients know logging in might help.
func (s *TodoService) Delete(ctx context.Context, user *model.User, id int64) error {
	todo, err := s.todos.FindByID(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if todo == nil {
		return apperrors.NotFound("Todo")
	}
	if user == nil {
		return apperrors.Unauthorized("Authentication required")
	}
	if !owns(todo, user) {
		return apperrors.Forbidden("Only the owner can delete this todo")
	}

	if err := s.todos.DeleteCascade(ctx, id); err != nil {
		return apperrors.Database(err)
	}
	s.logger.Info().Int64("todo_id", id).Str("user", user.Login).Msg("todo deleted")
	return nil
}

// Share grants login visibility of the todo plus the right to toggle its
// completion.
func (s *TodoService) Share(ctx context.Context, user *model.User, todoID int64, login string) (*model.ShareGrant, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, apperrors.MissingRequired("username")
	}

	todo, err := s.todos.FindByID(ctx, todoID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if todo == nil {
		return nil, apperrors.NotFound("Todo")
	}
	if user == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if !owns(todo, user) {
		return nil, apperrors.Forbidden("Only the owner can share this todo")
	}
	if login == user.Login {
		return nil, apperrors.ValidationError("Cannot share a todo with yourself")
	}

	grant, err := s.shares.Create(ctx, model.CreateShareParams{
		TodoID:          todoID,
		OwnerID:         user.Login,
		SharedWithID:    login,
		SharedWithLogin: login,
	})
	if err != nil {
		if err == repository.ErrDuplicateShare {
			return nil, apperrors.AlreadyExists("Todo already shared with this user")
		}
		return nil, apperrors.Database(err)
	}
	return grant, nil
}

// Unshare revokes a grant. Owner only.
func (s *TodoService) Unshare(ctx context.Context, user *model.User, todoID int64, login string) error {
	todo, err := s.todos.FindByID(ctx, todoID)
	if err != nil {
		return apperrors.Database(err)
	}
	if todo == nil {
		return apperrors.NotFound("Todo")
	}
	if user == nil {
		return apperrors.Unauthorized("Authentication required")
	}
	if !owns(todo, user) {
		return apperrors.Forbidden("Only the owner can unshare this todo")
	}

	deleted, err := s.shares.Delete(ctx, todoID, login)
	if err != nil {
		return apperrors.Database(err)
	}
	if deleted == 0 {
		return apperrors.NotFound("Share")
	}
	return nil
}

// Shares lists the grants on a todo. Owner only.
func (s *TodoService) Shares(ctx context.Context, user *model.User, todoID int64) ([]model.ShareGrant, error) {
	todo, err := s.todos.FindByID(ctx, todoID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if todo == nil {
		return nil, apperrors.NotFound("Todo")
	}
	if user == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if !owns(todo, user) {
		return nil, apperrors.Forbidden("Only the owner can list shares")
	}

	grants, err := s.shares.FindByTodoID(ctx, todoID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return grants, nil
}

// Export snapshots every row with completion counts.
func (s *TodoService) Export(ctx context.Context) (*ExportPayload, error) {
	todos, err := s.todos.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	payload := &ExportPayload{
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		TotalCount: len(todos),
		Todos:      []model.TodoView{},
	}
	for i := range todos {
		if todos[i].Done {
			payload.CompletedCount++
		} else {
			payload.PendingCount++
		}
		payload.Todos = append(payload.Todos, toView(&todos[i]))
	}
	return payload, nil
}

// MigrateLegacy assigns ownerless rows to the configured legacy account
// and reports the resulting ownership stats.
func (s *TodoService) MigrateLegacy(ctx context.Context, ownerID int64, ownerLogin string) (*MigrateResult, error) {
	updated, err := s.todos.BackfillOwner(ctx, ownerID, ownerLogin)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	total, owned, err := s.todos.OwnerStats(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	s.logger.Info().Int64("updated", updated).Int("total", total).Msg("legacy ownership migration completed")
	return &MigrateResult{Updated: updated, Total: total, Owned: owned}, nil
}
