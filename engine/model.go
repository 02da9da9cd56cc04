// Package engine implements the workflow execution core: the data model,
// the expression evaluator, the step runner, and the workflow executor.
package engine

import (
	"time"

	"github.com/creasty/defaults"
)

// ExecutionMode selects how a Step drives its ApiConfig.
type ExecutionMode string

const (
	ModeDirect ExecutionMode = "DIRECT"
	ModeLoop   ExecutionMode = "LOOP"
)

// HTTPMethod is the set of methods an ApiConfig may declare.
type HTTPMethod string

const (
	MethodGET     HTTPMethod = "GET"
	MethodPOST    HTTPMethod = "POST"
	MethodPUT     HTTPMethod = "PUT"
	MethodDELETE  HTTPMethod = "DELETE"
	MethodPATCH   HTTPMethod = "PATCH"
	MethodHEAD    HTTPMethod = "HEAD"
	MethodOPTIONS HTTPMethod = "OPTIONS"
)

// AuthType selects how credentials are injected into a request.
type AuthType string

const (
	AuthNone        AuthType = "NONE"
	AuthHeader      AuthType = "HEADER"
	AuthQueryParam  AuthType = "QUERY_PARAM"
	AuthOAuth2      AuthType = "OAUTH2"
)

// PaginationType selects the pagination strategy the HTTP Caller applies.
type PaginationType string

const (
	PaginationOffset   PaginationType = "OFFSET_BASED"
	PaginationPage     PaginationType = "PAGE_BASED"
	PaginationCursor   PaginationType = "CURSOR_BASED"
	PaginationDisabled PaginationType = "DISABLED"
)

// CacheMode controls whether the HTTP Caller consults/populates the
// process-wide response cache for a given run.
type CacheMode string

const (
	CacheEnabled   CacheMode = "ENABLED"
	CacheReadonly  CacheMode = "READONLY"
	CacheWriteonly CacheMode = "WRITEONLY"
	CacheDisabled  CacheMode = "DISABLED"
)

// Pagination describes how an ApiConfig's responses are paged and
// concatenated by the HTTP Caller.
type Pagination struct {
	Type       PaginationType `json:"type" yaml:"type" default:"DISABLED"`
	PageSize   int            `json:"pageSize,omitempty" yaml:"pageSize,omitempty"`
	CursorPath string         `json:"cursorPath,omitempty" yaml:"cursorPath,omitempty"`
}

// ApiConfig describes one HTTP endpoint, templated against per-call input.
type ApiConfig struct {
	ID             string            `json:"id,omitempty" yaml:"id,omitempty"`
	URLHost        string            `json:"urlHost" yaml:"urlHost" validate:"required"`
	URLPath        string            `json:"urlPath,omitempty" yaml:"urlPath,omitempty"`
	Method         HTTPMethod        `json:"method" yaml:"method" default:"GET"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams    map[string]any    `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	Body           string            `json:"body,omitempty" yaml:"body,omitempty"`
	Authentication AuthType          `json:"authentication,omitempty" yaml:"authentication,omitempty" default:"NONE"`
	Pagination     *Pagination       `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	DataPath       string            `json:"dataPath,omitempty" yaml:"dataPath,omitempty"`
	Instruction    string            `json:"instruction,omitempty" yaml:"instruction,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" default:"30s"`
	Retries int           `json:"retries,omitempty" yaml:"retries,omitempty" default:"2"`
	RetryDelayMS int      `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty" default:"200"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// SetTimestamps implements store.Timestamped so the Data Store (C3) can
// stamp server-assigned createdAt/updatedAt directly onto a stored
// ApiConfig, per spec.md §4.3.
func (a *ApiConfig) SetTimestamps(createdAt, updatedAt time.Time) {
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
}

// ApplyDefaults fills unset ApiConfig fields from struct tags, mirroring
// the teacher's two-phase (defaults → merge → validate) config pipeline.
func (a *ApiConfig) ApplyDefaults() error {
	if err := defaults.Set(a); err != nil {
		return err
	}
	if a.Pagination == nil {
		a.Pagination = &Pagination{Type: PaginationDisabled}
	}
	return nil
}

// Step is one unit of work inside a Workflow: a DIRECT call, or a LOOP
// over a sequence with an embedded ApiConfig driven once per item.
type Step struct {
	ID        string    `json:"id" yaml:"id" validate:"required"`
	ApiConfig ApiConfig `json:"apiConfig,omitempty" yaml:"apiConfig,omitempty"`

	// ApiConfigID references a stored ApiConfig (C3) by id instead of
	// embedding one inline, per spec.md §3/§9: "apiConfig may reference
	// an ApiConfig by id but the executor resolves and embeds a snapshot
	// before execution". rpc.Facade resolves this before ValidateWorkflow
	// runs; Step.ApiConfig is empty on the wire until resolution fills it.
	ApiConfigID string `json:"apiConfigId,omitempty" yaml:"apiConfigId,omitempty"`

	ExecutionMode   ExecutionMode `json:"executionMode,omitempty" yaml:"executionMode,omitempty" default:"DIRECT"`
	LoopSelector    string        `json:"loopSelector,omitempty" yaml:"loopSelector,omitempty"`
	LoopMaxIters    int           `json:"loopMaxIters,omitempty" yaml:"loopMaxIters,omitempty"`
	InputMapping    string        `json:"inputMapping,omitempty" yaml:"inputMapping,omitempty" default:"$"`
	ResponseMapping string        `json:"responseMapping,omitempty" yaml:"responseMapping,omitempty" default:"$"`

	// CollectFailures is accepted on the wire but not implemented by this
	// executor: spec.md leaves LOOP failure policy to the implementer and
	// mandates abort-on-first as the default. The field is reserved so a
	// future collect-mode executor doesn't need a wire-shape migration.
	CollectFailures bool `json:"collectFailures,omitempty" yaml:"collectFailures,omitempty"`
}

func (s *Step) ApplyDefaults() error {
	if err := defaults.Set(s); err != nil {
		return err
	}
	return s.ApiConfig.ApplyDefaults()
}

// Workflow is a named, versioned, ordered list of Steps plus a final
// transform expression and an optional response schema.
type Workflow struct {
	ID             string         `json:"id" yaml:"id" validate:"required"`
	Steps          []Step         `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
	FinalTransform string         `json:"finalTransform,omitempty" yaml:"finalTransform,omitempty" default:"$"`
	ResponseSchema map[string]any `json:"responseSchema,omitempty" yaml:"responseSchema,omitempty"`
	CreatedAt      time.Time      `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// SetTimestamps implements store.Timestamped so the Data Store (C3) can
// stamp server-assigned createdAt/updatedAt directly onto a stored
// Workflow, per spec.md §4.3.
func (w *Workflow) SetTimestamps(createdAt, updatedAt time.Time) {
	w.CreatedAt = createdAt
	w.UpdatedAt = updatedAt
}

func (w *Workflow) ApplyDefaults() error {
	if err := defaults.Set(w); err != nil {
		return err
	}
	for i := range w.Steps {
		if err := w.Steps[i].ApplyDefaults(); err != nil {
			return err
		}
	}
	return nil
}

// StepResult is the outcome of driving one Step to completion.
type StepResult struct {
	StepID          string `json:"stepId"`
	Success         bool   `json:"success"`
	RawData         any    `json:"rawData,omitempty"`
	TransformedData any    `json:"transformedData,omitempty"`
	Error           string `json:"error,omitempty"`

	// IterationsRequested/IterationsRun make loopMaxIters truncation
	// observable in step metadata, per spec.md invariant 3.
	IterationsRequested int `json:"iterationsRequested,omitempty"`
	IterationsRun       int `json:"iterationsRun,omitempty"`
}

// RunResult is the immutable outcome of executing one workflow once.
type RunResult struct {
	ID           string       `json:"id"`
	Success      bool         `json:"success"`
	Data         any          `json:"data"`
	Error        string       `json:"error,omitempty"`
	StartedAt    time.Time    `json:"startedAt"`
	CompletedAt  time.Time    `json:"completedAt"`
	StepResults  []StepResult `json:"stepResults"`
	Config       Workflow     `json:"config"`
	ConfigID     string       `json:"configId,omitempty"`
	TenantID     string       `json:"tenant,omitempty"`
}

// TenantInfo is administrative per-tenant metadata.
type TenantInfo struct {
	Email            string `json:"email,omitempty" yaml:"email,omitempty"`
	EmailEntrySkipped bool  `json:"emailEntrySkipped" yaml:"emailEntrySkipped"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// SetTimestamps implements store.Timestamped so the Data Store (C3) can
// stamp server-assigned createdAt/updatedAt directly onto a stored
// TenantInfo, per spec.md §4.3.
func (t *TenantInfo) SetTimestamps(createdAt, updatedAt time.Time) {
	t.CreatedAt = createdAt
	t.UpdatedAt = updatedAt
}
