package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calledit/calledit-server/pkg/models"
)

// Postgres is the production Store. Collection-valued fields (members,
// messages, predictions, votes, per-user stats) live in JSONB columns and are
// read, mutated in memory, and written back whole; the chat-lock manager
// serializes those cycles per chat.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Store on an open connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// GetUser returns the user or ErrNotFound.
func (p *Postgres) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u := &models.User{ID: userID}
	var chats []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT display_name, email, photo_url, chats FROM users WHERE user_id = $1`,
		userID,
	).Scan(&u.DisplayName, &u.Email, &u.PhotoURL, &chats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := json.Unmarshal(chats, &u.Chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats column: %w", err)
	}
	return u, nil
}

// PutUser inserts or fully replaces the user row.
func (p *Postgres) PutUser(ctx context.Context, u *models.User) error {
	chats, err := encodeJSON(u.Chats, "[]")
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO users (user_id, display_name, email, photo_url, chats)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		   display_name = EXCLUDED.display_name,
		   email        = EXCLUDED.email,
		   photo_url    = EXCLUDED.photo_url,
		   chats        = EXCLUDED.chats`,
		u.ID, u.DisplayName, u.Email, u.PhotoURL, chats,
	)
	if err != nil {
		return fmt.Errorf("failed to put user: %w", err)
	}
	return nil
}

const chatColumns = `id, name, type, last_message, members, messages, score_sum_per_user, predictions_per_user`

// GetChat returns the chat or ErrNotFound.
func (p *Postgres) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id = $1`, chatID)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return c, nil
}

// GetChats returns existing chats in input order, skipping missing ids.
func (p *Postgres) GetChats(ctx context.Context, chatIDs []int64) ([]*models.Chat, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(chatIDs))
	for i, id := range chatIDs {
		args[i] = id
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id IN (`+placeholders(len(chatIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.Chat, len(chatIDs))
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}

	chats := make([]*models.Chat, 0, len(byID))
	for _, id := range chatIDs {
		if c, ok := byID[id]; ok {
			chats = append(chats, c)
		}
	}
	return chats, nil
}

// CreateChat inserts the chat and assigns its id.
func (p *Postgres) CreateChat(ctx context.Context, c *models.Chat) (int64, error) {
	cols, err := chatJSONColumns(c)
	if err != nil {
		return 0, err
	}
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO chats (name, type, last_message, members, messages, score_sum_per_user, predictions_per_user)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		c.Name, c.Type, c.LastMessage, cols.members, cols.messages, cols.scoreSums, cols.predCounts,
	).Scan(&c.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create chat: %w", err)
	}
	return c.ID, nil
}

// PutChat replaces an existing chat row.
func (p *Postgres) PutChat(ctx context.Context, c *models.Chat) error {
	cols, err := chatJSONColumns(c)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE chats SET
		   name = $2, type = $3, last_message = $4, members = $5,
		   messages = $6, score_sum_per_user = $7, predictions_per_user = $8
		 WHERE id = $1`,
		c.ID, c.Name, c.Type, c.LastMessage, cols.members, cols.messages, cols.scoreSums, cols.predCounts,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	return requireRow(res)
}

const assertionColumns = `id, user_id, chat_id, text, predictions, votes, validation_date, casting_forecast_deadline, created_at, completed, final_answer`

// GetAssertion returns the assertion or ErrNotFound.
func (p *Postgres) GetAssertion(ctx context.Context, assertionID int64) (*models.Assertion, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+assertionColumns+` FROM assertions WHERE id = $1`, assertionID)
	a, err := scanAssertion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assertion: %w", err)
	}
	return a, nil
}

// CreateAssertion inserts the assertion and assigns its id.
func (p *Postgres) CreateAssertion(ctx context.Context, a *models.Assertion) (int64, error) {
	predictions, err := encodeJSON(a.Predictions, "{}")
	if err != nil {
		return 0, err
	}
	votes, err := encodeJSON(a.Votes, "{}")
	if err != nil {
		return 0, err
	}
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO assertions (user_id, chat_id, text, predictions, votes, validation_date, casting_forecast_deadline, created_at, completed, final_answer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		a.AuthorID, a.ChatID, a.Text, predictions, votes,
		a.ValidationDate, a.CastingForecastDeadline, a.CreatedAt, a.Completed, a.FinalAnswer,
	).Scan(&a.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create assertion: %w", err)
	}
	return a.ID, nil
}

// PutAssertion replaces an existing assertion row.
func (p *Postgres) PutAssertion(ctx context.Context, a *models.Assertion) error {
	predictions, err := encodeJSON(a.Predictions, "{}")
	if err != nil {
		return err
	}
	votes, err := encodeJSON(a.Votes, "{}")
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE assertions SET
		   user_id = $2, chat_id = $3, text = $4, predictions = $5, votes = $6,
		   validation_date = $7, casting_forecast_deadline = $8, created_at = $9,
		   completed = $10, final_answer = $11
		 WHERE id = $1`,
		a.ID, a.AuthorID, a.ChatID, a.Text, predictions, votes,
		a.ValidationDate, a.CastingForecastDeadline, a.CreatedAt, a.Completed, a.FinalAnswer,
	)
	if err != nil {
		return fmt.Errorf("failed to update assertion: %w", err)
	}
	return requireRow(res)
}

// ListDueAssertions returns open assertions past their validation date, by id.
func (p *Postgres) ListDueAssertions(ctx context.Context, now time.Time) ([]*models.Assertion, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+assertionColumns+` FROM assertions
		 WHERE NOT completed AND validation_date <= $1
		 ORDER BY id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due assertions: %w", err)
	}
	defer rows.Close()

	var due []*models.Assertion
	for rows.Next() {
		a, err := scanAssertion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assertion: %w", err)
		}
		due = append(due, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assertions: %w", err)
	}
	return due, nil
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close is a no-op: the connection pool is owned by pkg/database.
func (p *Postgres) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*models.Chat, error) {
	c := &models.Chat{}
	var members, messages, scoreSums, predCounts []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &c.LastMessage, &members, &messages, &scoreSums, &predCounts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &c.Members); err != nil {
		return nil, fmt.Errorf("failed to decode members column: %w", err)
	}
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages column: %w", err)
	}
	if err := json.Unmarshal(scoreSums, &c.ScoreSumPerUser); err != nil {
		return nil, fmt.Errorf("failed to decode score_sum_per_user column: %w", err)
	}
	if err := json.Unmarshal(predCounts, &c.PredictionsPerUser); err != nil {
		return nil, fmt.Errorf("failed to decode predictions_per_user column: %w", err)
	}
	return c, nil
}

func scanAssertion(row rowScanner) (*models.Assertion, error) {
	a := &models.Assertion{}
	var predictions, votes []byte
	if err := row.Scan(&a.ID, &a.AuthorID, &a.ChatID, &a.Text, &predictions, &votes,
		&a.ValidationDate, &a.CastingForecastDeadline, &a.CreatedAt, &a.Completed, &a.FinalAnswer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(predictions, &a.Predictions); err != nil {
		return nil, fmt.Errorf("failed to decode predictions column: %w", err)
	}
	if err := json.Unmarshal(votes, &a.Votes); err != nil {
		return nil, fmt.Errorf("failed to decode votes column: %w", err)
	}
	a.ValidationDate = a.ValidationDate.UTC()
	a.CastingForecastDeadline = a.CastingForecastDeadline.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

type chatJSON struct {
	members    []byte
	messages   []byte
	scoreSums  []byte
	predCounts []byte
}

func chatJSONColumns(c *models.Chat) (chatJSON, error) {
	members, err := encodeJSON(c.Members, "[]")
	if err != nil {
		return chatJSON{}, err
	}
	messages, err := encodeJSON(c.Messages, "[]")
	if err != nil {
		return chatJSON{}, err
	}
	scoreSums, err := encodeJSON(c.ScoreSumPerUser, "{}")
	if err != nil {
		return chatJSON{}, err
	}
	predCounts, err := encodeJSON(c.PredictionsPerUser, "{}")
	if err != nil {
		return chatJSON{}, err
	}
	return chatJSON{members: members, messages: messages, scoreSums: scoreSums, predCounts: predCounts}, nil
}

// encodeJSON marshals a collection column, substituting empty for nil so the
// database never stores JSON null.
func encodeJSON(v any, empty string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	if string(data) == "null" {
		return []byte(empty), nil
	}
	return data, nil
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
