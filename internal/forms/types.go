package forms

import (
	"encoding/json"
	"time"

	"github.com/formai/engine/internal/schema"
)

// Status is the lifecycle state of a form
type Status string

const (
	StatusDraft     Status = "draft"
	StatusTesting   Status = "testing"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusTesting, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// AcceptsSubmissions reports whether records may be written in this state
func (s Status) AcceptsSubmissions() bool {
	return s == StatusPublished || s == StatusTesting
}

// Version is one entry of the append-only schema history
type Version struct {
	Version   int           `json:"version"`
	Schema    schema.Schema `json:"schema"`
	CreatedAt time.Time     `json:"createdAt"`
	CreatedBy string        `json:"createdBy"`
}

// AccessControl holds the groups allowed to view, submit to and manage a form
type AccessControl struct {
	ViewGroups   []string `json:"viewGroups"`
	SubmitGroups []string `json:"submitGroups"`
	ManageGroups []string `json:"manageGroups"`
	IsPublic     bool     `json:"isPublic"`
}

// IntegrationType names an outbound integration kind
type IntegrationType string

const (
	IntegrationWebhook   IntegrationType = "webhook"
	IntegrationEmail     IntegrationType = "email"
	IntegrationSQLServer IntegrationType = "sqlserver"
	IntegrationMongoDB   IntegrationType = "mongodb"
	IntegrationAPI       IntegrationType = "api"
)

// Integration is a configured outbound integration
type Integration struct {
	Type    IntegrationType `json:"type" validate:"oneof=webhook email sqlserver mongodb api"`
	Config  map[string]any  `json:"config"`
	Enabled bool            `json:"enabled"`
}

// Analytics aggregates submission activity
type Analytics struct {
	TotalSubmissions  int        `json:"totalSubmissions"`
	LastSubmission    *time.Time `json:"lastSubmission,omitempty"`
	AvgCompletionTime float64    `json:"avgCompletionTime"`
}

// PromptEntry records one generation or refinement exchange
type PromptEntry struct {
	Prompt    string          `json:"prompt"`
	Response  json.RawMessage `json:"response"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Form is the form entity
type Form struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Slug             string        `json:"slug"`
	Description      string        `json:"description"`
	Organization     string        `json:"organization"`
	CreatedBy        string        `json:"createdBy"`
	Status           Status        `json:"status"`
	Version          int           `json:"version"`
	Versions         []Version     `json:"versions,omitempty"`
	Schema           schema.Schema `json:"schema"`
	StorageNamespace string        `json:"storageNamespace"`
	AccessControl    AccessControl `json:"accessControl"`
	Integrations     []Integration `json:"integrations"`
	Analytics        Analytics     `json:"analytics"`
	PromptHistory    []PromptEntry `json:"aiPromptHistory,omitempty"`
	PublishedAt      *time.Time    `json:"publishedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// CreateInput carries the attributes of a new form
type CreateInput struct {
	Name          string         `json:"name" validate:"required,max=200"`
	Description   string         `json:"description" validate:"max=2000"`
	Schema        schema.Schema  `json:"schema"`
	Organization  string         `json:"organization" validate:"required"`
	CreatedBy     string         `json:"createdBy" validate:"required"`
	AccessControl *AccessControl `json:"accessControl,omitempty"`
	Integrations  []Integration  `json:"integrations,omitempty" validate:"dive"`
}

// UpdateInput carries a partial update; nil members are left untouched
type UpdateInput struct {
	Name          *string        `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	Schema        *schema.Schema `json:"schema,omitempty"`
	AccessControl *AccessControl `json:"accessControl,omitempty"`
	Integrations  *[]Integration `json:"integrations,omitempty" validate:"omitempty,dive"`
}

// ListOptions filters and pages form listings
type ListOptions struct {
	Organization string
	Status       Status
	CreatedBy    string
	// Search matches name or description, case-insensitive
	Search string
	Page   int
	Limit  int
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	return o
}

// ListResult is one page of forms
type ListResult struct {
	Forms []*Form `json:"forms"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}
