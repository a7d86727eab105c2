package namespace

import (
	"time"
)

// Status is the review state of a submission record
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Statuses lists the accepted record statuses
var Statuses = []Status{StatusSubmitted, StatusReviewed, StatusApproved, StatusRejected}

// Valid reports whether s is one of the accepted statuses
func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Source is the channel a submission arrived through
type Source string

const (
	SourceWeb    Source = "web"
	SourceAPI    Source = "api"
	SourceMobile Source = "mobile"
)

// Metadata describes the context of a submission
type Metadata struct {
	SubmittedBy string    `json:"submittedBy,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	// CompletionTime is the time spent filling the form, in seconds
	CompletionTime *float64 `json:"completionTime,omitempty"`
	Source         Source   `json:"source"`
}

// File references an uploaded file attached to a record
type File struct {
	FieldID  string `json:"fieldId"`
	FileName string `json:"fileName"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// Record is one stored submission
type Record struct {
	ID          string         `json:"id"`
	FormID      string         `json:"formId"`
	FormVersion int            `json:"formVersion"`
	Data        map[string]any `json:"data"`
	Metadata    Metadata       `json:"metadata"`
	Status      Status         `json:"status"`
	Files       []File         `json:"files"`
	IsTest      bool           `json:"isTest"`
}

// ListOptions selects and pages records
type ListOptions struct {
	// Status restricts the listing to one status when set
	Status Status
	// IncludeTest includes test records
	IncludeTest bool
	// Page is 1-based
	Page int
	// Limit is the page size
	Limit int
	// Filter is an optional expression over data.<name>, status and is_test
	Filter string
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 1000
)

// normalize applies listing defaults
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

// ListResult is one page of records plus the total matching count
type ListResult struct {
	Records []*Record `json:"records"`
	Total   int       `json:"total"`
	Page    int       `json:"page"`
	Limit   int       `json:"limit"`
}
