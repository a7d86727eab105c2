package forms

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formai/engine/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists forms, their version history and prompt history in SQL
type Store struct {
	db *sql.DB
}

// NewStore creates the tables if needed and returns a store over db
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize forms schema: %w", err)
	}
	return &Store{db: db}, nil
}

const formColumns = `id, organization, name, slug, description, created_by, status, version,
	schema_json, storage_namespace, access_control, integrations,
	total_submissions, last_submission, avg_completion_time, published_at, created_at, updated_at`

// Insert stores a new form together with its version history
func (s *Store) Insert(ctx context.Context, f *Form) error {
	schemaJSON, accessJSON, integrationsJSON, err := encodeColumns(f)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO forms (`+formColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Organization, f.Name, f.Slug, f.Description, f.CreatedBy, string(f.Status), f.Version,
		schemaJSON, f.StorageNamespace, accessJSON, integrationsJSON,
		f.Analytics.TotalSubmissions, formatTimePtr(f.Analytics.LastSubmission), f.Analytics.AvgCompletionTime,
		formatTimePtr(f.PublishedAt), formatTime(f.CreatedAt), formatTime(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert form: %w", err)
	}

	for _, v := range f.Versions {
		if err := insertVersion(ctx, tx, f.ID, v); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit form: %w", err)
	}
	return nil
}

// Get loads a form with its histories
func (s *Store) Get(ctx context.Context, id string) (*Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE id = ?`, id)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadHistories(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetBySlug loads a form by its public slug
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE slug = ?`, slug)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: slug}
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadHistories(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// List returns a page of forms, most recently updated first, without histories
func (s *Store) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	opts = opts.normalize()

	var (
		where []string
		args  []any
	)
	if opts.Organization != "" {
		where = append(where, "organization = ?")
		args = append(args, opts.Organization)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, opts.CreatedBy)
	}
	if opts.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(opts.Search)) + "%"
		where = append(where, `(lower(name) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	result := &ListResult{Forms: []*Form{}, Page: opts.Page, Limit: opts.Limit}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms`+clause, args...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("failed to count forms: %w", err)
	}

	pageArgs := append(append([]any(nil), args...), opts.Limit, (opts.Page-1)*opts.Limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+formColumns+` FROM forms`+clause+` ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		result.Forms = append(result.Forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	return result, nil
}

// Save writes the mutable attributes of f if the stored version still
// equals expectedVersion, appending newVersion to the history when set.
// Analytics are never written here; see IncrementSubmissions.
func (s *Store) Save(ctx context.Context, f *Form, expectedVersion int, newVersion *Version) error {
	schemaJSON, accessJSON, integrationsJSON, err := encodeColumns(f)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE forms SET
			name = ?, description = ?, status = ?, version = ?, schema_json = ?,
			access_control = ?, integrations = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		f.Name, f.Description, string(f.Status), f.Version, schemaJSON,
		accessJSON, integrationsJSON, formatTimePtr(f.PublishedAt), formatTime(f.UpdatedAt),
		f.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update form: %w", err)
	}
	if err := s.checkAffected(ctx, tx, res, f.ID, expectedVersion); err != nil {
		return err
	}

	if newVersion != nil {
		if err := insertVersion(ctx, tx, f.ID, *newVersion); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit form: %w", err)
	}
	return nil
}

// Delete removes a form and its histories
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// AppendPrompt adds an entry to the prompt history
func (s *Store) AppendPrompt(ctx context.Context, id string, entry PromptEntry) error {
	response := string(entry.Response)
	if response == "" {
		response = "null"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO form_prompts (form_id, prompt, response, model, created_at)
		 SELECT id, ?, ?, ?, ? FROM forms WHERE id = ?`,
		entry.Prompt, response, entry.Model, formatTime(entry.CreatedAt), id)
	if err != nil {
		return fmt.Errorf("failed to append prompt: %w", err)
	}
	return s.requireExists(ctx, id)
}

// IncrementSubmissions atomically bumps the submission counter
func (s *Store) IncrementSubmissions(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE forms SET total_submissions = total_submissions + 1, last_submission = ? WHERE id = ?`,
		formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to increment submissions: %w", err)
	}
	return rowsOrNotFound(res, id)
}

// DecrementSubmissions atomically lowers the submission counter, never below zero
func (s *Store) DecrementSubmissions(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE forms SET total_submissions = MAX(total_submissions - 1, 0) WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to decrement submissions: %w", err)
	}
	return rowsOrNotFound(res, id)
}

func (s *Store) loadHistories(ctx context.Context, f *Form) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, schema_json, created_at, created_by FROM form_versions WHERE form_id = ? ORDER BY version`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}
	defer rows.Close()

	f.Versions = []Version{}
	for rows.Next() {
		var (
			v          Version
			schemaJSON string
			createdAt  string
		)
		if err := rows.Scan(&v.Version, &schemaJSON, &createdAt, &v.CreatedBy); err != nil {
			return fmt.Errorf("failed to scan version: %w", err)
		}
		if err := json.Unmarshal([]byte(schemaJSON), &v.Schema); err != nil {
			return fmt.Errorf("failed to decode version %d schema: %w", v.Version, err)
		}
		if v.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		f.Versions = append(f.Versions, v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}

	prompts, err := s.db.QueryContext(ctx,
		`SELECT prompt, response, model, created_at FROM form_prompts WHERE form_id = ? ORDER BY id`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	defer prompts.Close()

	f.PromptHistory = []PromptEntry{}
	for prompts.Next() {
		var (
			p         PromptEntry
			response  string
			createdAt string
		)
		if err := prompts.Scan(&p.Prompt, &response, &p.Model, &createdAt); err != nil {
			return fmt.Errorf("failed to scan prompt: %w", err)
		}
		p.Response = json.RawMessage(response)
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		f.PromptHistory = append(f.PromptHistory, p)
	}
	return prompts.Err()
}

func (s *Store) checkAffected(ctx context.Context, tx *sql.Tx, res sql.Result, id string, expectedVersion int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update form: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM forms WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to check form: %w", err)
	}
	return &ConflictError{ID: id, ExpectedVersion: expectedVersion}
}

func (s *Store) requireExists(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM forms WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{ID: id}
	}
	return err
}

func insertVersion(ctx context.Context, tx *sql.Tx, formID string, v Version) error {
	schemaJSON, err := json.Marshal(v.Schema)
	if err != nil {
		return fmt.Errorf("failed to encode version schema: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO form_versions (form_id, version, schema_json, created_at, created_by) VALUES (?, ?, ?, ?, ?)`,
		formID, v.Version, string(schemaJSON), formatTime(v.CreatedAt), v.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert version %d: %w", v.Version, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (*Form, error) {
	var (
		f                                        Form
		status                                   string
		schemaJSON, accessJSON, integrationsJSON string
		lastSubmission, publishedAt              sql.NullString
		createdAt, updatedAt                     string
	)
	err := row.Scan(
		&f.ID, &f.Organization, &f.Name, &f.Slug, &f.Description, &f.CreatedBy, &status, &f.Version,
		&schemaJSON, &f.StorageNamespace, &accessJSON, &integrationsJSON,
		&f.Analytics.TotalSubmissions, &lastSubmission, &f.Analytics.AvgCompletionTime,
		&publishedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan form: %w", err)
	}
	f.Status = Status(status)

	if err := json.Unmarshal([]byte(schemaJSON), &f.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema of form %s: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(accessJSON), &f.AccessControl); err != nil {
		return nil, fmt.Errorf("failed to decode access control of form %s: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(integrationsJSON), &f.Integrations); err != nil {
		return nil, fmt.Errorf("failed to decode integrations of form %s: %w", f.ID, err)
	}

	if f.Analytics.LastSubmission, err = parseTimePtr(lastSubmission); err != nil {
		return nil, err
	}
	if f.PublishedAt, err = parseTimePtr(publishedAt); err != nil {
		return nil, err
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func encodeColumns(f *Form) (schemaJSON, accessJSON, integrationsJSON string, err error) {
	var raw []byte
	if raw, err = json.Marshal(f.Schema); err != nil {
		return "", "", "", fmt.Errorf("failed to encode schema: %w", err)
	}
	schemaJSON = string(raw)

	access := f.AccessControl
	if access.ViewGroups == nil {
		access.ViewGroups = []string{}
	}
	if access.SubmitGroups == nil {
		access.SubmitGroups = []string{}
	}
	if access.ManageGroups == nil {
		access.ManageGroups = []string{}
	}
	if raw, err = json.Marshal(access); err != nil {
		return "", "", "", fmt.Errorf("failed to encode access control: %w", err)
	}
	accessJSON = string(raw)

	integrations := f.Integrations
	if integrations == nil {
		integrations = []Integration{}
	}
	if raw, err = json.Marshal(integrations); err != nil {
		return "", "", "", fmt.Errorf("failed to encode integrations: %w", err)
	}
	integrationsJSON = string(raw)

	return schemaJSON, accessJSON, integrationsJSON, nil
}

func rowsOrNotFound(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// cloneSchema deep copies a schema
func cloneSchema(s schema.Schema) (schema.Schema, error) {
	clone, err := s.Clone()
	if err != nil {
		return schema.Schema{}, err
	}
	return *clone, nil
}
