package server

import (
	"planner/internal/domain"
)

// Request payloads. Dates accept YYYY-MM-DD, RFC3339, "today", "tomorrow"
// and "+Nd"; on updates an empty string or "none" clears the date.

type CreateTaskRequest struct {
	Title       string   `json:"title" minLength:"1"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty" enum:"Inbox,Todo,Doing,Blocked,Done"`
	Priority    *int     `json:"priority,omitempty"`
	Effort      *float64 `json:"effort,omitempty"`
	Impact      *int     `json:"impact,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Due         string   `json:"due,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	IsNextStep  bool     `json:"is_next_step,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty" enum:"Inbox,Todo,Doing,Blocked,Done"`
	Priority    *int      `json:"priority,omitempty"`
	Effort      *float64  `json:"effort,omitempty"`
	Impact      *int      `json:"impact,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Due         *string   `json:"due,omitempty"`
	ClientID    *string   `json:"client_id,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	IsNextStep  *bool     `json:"is_next_step,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	AddTags     []string  `json:"add_tags,omitempty"`
	RemoveTags  []string  `json:"remove_tags,omitempty"`
}

type BulkUpdateTasksRequest struct {
	IDs    []string          `json:"ids" minItems:"1"`
	Update UpdateTaskRequest `json:"update"`
}

type CreateClientRequest struct {
	Name         string   `json:"name" minLength:"1"`
	Industry     string   `json:"industry,omitempty"`
	Website      string   `json:"website,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Email        string   `json:"email,omitempty"`
	Address      string   `json:"address,omitempty"`
	IsKeyAccount bool     `json:"is_key_account,omitempty"`
	NextStep     string   `json:"next_step,omitempty"`
	NextStepDue  string   `json:"next_step_due,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

type UpdateClientRequest struct {
	Name         *string   `json:"name,omitempty"`
	Industry     *string   `json:"industry,omitempty"`
	Website      *string   `json:"website,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Email        *string   `json:"email,omitempty"`
	Address      *string   `json:"address,omitempty"`
	IsKeyAccount *bool     `json:"is_key_account,omitempty"`
	NextStep     *string   `json:"next_step,omitempty"`
	NextStepDue  *string   `json:"next_step_due,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
}

type CreateProjectRequest struct {
	Title       string   `json:"title" minLength:"1"`
	Description string   `json:"description,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	Kind        string   `json:"kind,omitempty" enum:"Active,Planned"`
	Due         string   `json:"due,omitempty"`
	NextStep    string   `json:"next_step,omitempty"`
	NextStepDue string   `json:"next_step_due,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type UpdateProjectRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	ClientID    *string   `json:"client_id,omitempty"`
	Kind        *string   `json:"kind,omitempty" enum:"Active,Planned"`
	Due         *string   `json:"due,omitempty"`
	NextStep    *string   `json:"next_step,omitempty"`
	NextStepDue *string   `json:"next_step_due,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

type CreateNoteRequest struct {
	Title       string   `json:"title" minLength:"1"`
	Content     string   `json:"content,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	LinkedTasks []string `json:"linked_tasks,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type UpdateNoteRequest struct {
	Title       *string   `json:"title,omitempty"`
	Content     *string   `json:"content,omitempty"`
	ClientID    *string   `json:"client_id,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	LinkedTasks *[]string `json:"linked_tasks,omitempty"`
	LinkTasks   []string  `json:"link_tasks,omitempty"`
	UnlinkTasks []string  `json:"unlink_tasks,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

type CreateOpportunityRequest struct {
	Name        string   `json:"name" minLength:"1"`
	ClientID    string   `json:"client_id,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	Stage       string   `json:"stage,omitempty" enum:"Discovery,Scoping,Proposal,Negotiation,Closed Won,Closed Lost"`
	Amount      float64  `json:"amount,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	NextStep    string   `json:"next_step,omitempty"`
	NextStepDue string   `json:"next_step_due,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type UpdateOpportunityRequest struct {
	Name        *string   `json:"name,omitempty"`
	ClientID    *string   `json:"client_id,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	Stage       *string   `json:"stage,omitempty" enum:"Discovery,Scoping,Proposal,Negotiation,Closed Won,Closed Lost"`
	Amount      *float64  `json:"amount,omitempty"`
	Probability *float64  `json:"probability,omitempty"`
	NextStep    *string   `json:"next_step,omitempty"`
	NextStepDue *string   `json:"next_step_due,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

type CreateStakeholderRequest struct {
	Name      string `json:"name" minLength:"1"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Influence string `json:"influence,omitempty" enum:"Low,Medium,High"`
	Attitude  string `json:"attitude,omitempty" enum:"Champion,Supporter,Neutral,Skeptic,Blocker"`
	Notes     string `json:"notes,omitempty"`
}

type UpdateStakeholderRequest struct {
	Name      *string `json:"name,omitempty"`
	Role      *string `json:"role,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	ClientID  *string `json:"client_id,omitempty"`
	Influence *string `json:"influence,omitempty" enum:"Low,Medium,High"`
	Attitude  *string `json:"attitude,omitempty" enum:"Champion,Supporter,Neutral,Skeptic,Blocker"`
	Notes     *string `json:"notes,omitempty"`
}

type CreateRAIDRequest struct {
	Kind        string `json:"kind" enum:"risk,assumption,issue,dependency,decision"`
	Title       string `json:"title" minLength:"1"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty" enum:"Low,Medium,High"`
	Likelihood  string `json:"likelihood,omitempty" enum:"Low,Medium,High"`
	Status      string `json:"status,omitempty" enum:"Open,Monitoring,Closed"`
	Owner       string `json:"owner,omitempty"`
	Due         string `json:"due,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
}

type UpdateRAIDRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Severity    *string `json:"severity,omitempty" enum:"Low,Medium,High"`
	Likelihood  *string `json:"likelihood,omitempty" enum:"Low,Medium,High"`
	Status      *string `json:"status,omitempty" enum:"Open,Monitoring,Closed"`
	Owner       *string `json:"owner,omitempty"`
	Due         *string `json:"due,omitempty"`
	Resolution  *string `json:"resolution,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`
}

type CreateTimeEntryRequest struct {
	Date      string  `json:"date,omitempty" format:"date"`
	Hours     float64 `json:"hours"`
	Billable  *bool   `json:"billable,omitempty"`
	ClientID  string  `json:"client_id,omitempty"`
	ProjectID string  `json:"project_id,omitempty"`
	TaskID    string  `json:"task_id,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

type UpdateTimeEntryRequest struct {
	Date      *string  `json:"date,omitempty" format:"date"`
	Hours     *float64 `json:"hours,omitempty"`
	Billable  *bool    `json:"billable,omitempty"`
	ClientID  *string  `json:"client_id,omitempty"`
	ProjectID *string  `json:"project_id,omitempty"`
	TaskID    *string  `json:"task_id,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
}

type StartTimerRequest struct {
	TaskID string `json:"task_id,omitempty"`
}

type CreateKnowledgeRequest struct {
	Title    string   `json:"title" minLength:"1"`
	Content  string   `json:"content,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	IsPublic bool     `json:"is_public,omitempty"`
}

type UpdateKnowledgeRequest struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Category *string   `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	IsPublic *bool     `json:"is_public,omitempty"`
}

// Response payloads

type TaskList struct {
	Items []domain.Task `json:"items"`
}

type RescoreResponse struct {
	Changed int `json:"changed"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    any    `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
