package domain

import "time"

// Entity kinds used by tags, events and search results.
const (
	KindTask        = "task"
	KindClient      = "client"
	KindProject     = "project"
	KindNote        = "note"
	KindOpportunity = "opportunity"
	KindStakeholder = "stakeholder"
	KindRAID        = "raid"
	KindTimeEntry   = "time_entry"
	KindTimer       = "timer"
	KindKnowledge   = "knowledge"
)

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

type TaskStatus string

const (
	StatusInbox   TaskStatus = "Inbox"
	StatusTodo    TaskStatus = "Todo"
	StatusDoing   TaskStatus = "Doing"
	StatusBlocked TaskStatus = "Blocked"
	StatusDone    TaskStatus = "Done"
)

// TaskStatuses lists statuses in kanban column order.
var TaskStatuses = []TaskStatus{StatusInbox, StatusTodo, StatusDoing, StatusBlocked, StatusDone}

func (s TaskStatus) Valid() bool {
	for _, st := range TaskStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status" enum:"Inbox,Todo,Doing,Blocked,Done"`
	Priority    int        `json:"priority" minimum:"1" maximum:"5"`
	Effort      float64    `json:"effort"`
	Impact      int        `json:"impact" minimum:"1" maximum:"5"`
	Confidence  float64    `json:"confidence" minimum:"0" maximum:"1"`
	Score       float64    `json:"score"`
	Due         *time.Time `json:"due,omitempty"`
	ClientID    *string    `json:"client_id,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	IsNextStep  bool       `json:"is_next_step"`
	Tags        []string   `json:"tags"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
	CompletedAt *string    `json:"completed_at,omitempty" format:"date-time"`
}

type Client struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Industry     string     `json:"industry,omitempty"`
	Website      string     `json:"website,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Email        string     `json:"email,omitempty"`
	Address      string     `json:"address,omitempty"`
	IsKeyAccount bool       `json:"is_key_account"`
	NextStep     string     `json:"next_step,omitempty"`
	NextStepDue  *time.Time `json:"next_step_due,omitempty"`
	Tags         []string   `json:"tags"`
	CreatedAt    string     `json:"created_at" format:"date-time"`
	UpdatedAt    string     `json:"updated_at" format:"date-time"`
}

const (
	ProjectActive  = "Active"
	ProjectPlanned = "Planned"
)

type Project struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ClientID    *string    `json:"client_id,omitempty"`
	Kind        string     `json:"kind" enum:"Active,Planned"`
	Due         *time.Time `json:"due,omitempty"`
	NextStep    string     `json:"next_step,omitempty"`
	NextStepDue *time.Time `json:"next_step_due,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

type Note struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content,omitempty"`
	ClientID    *string  `json:"client_id,omitempty"`
	ProjectID   *string  `json:"project_id,omitempty"`
	LinkedTasks []string `json:"linked_tasks"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

const (
	StageDiscovery   = "Discovery"
	StageScoping     = "Scoping"
	StageProposal    = "Proposal"
	StageNegotiation = "Negotiation"
	StageClosedWon   = "Closed Won"
	StageClosedLost  = "Closed Lost"
)

// OpportunityStages lists pipeline stages in board order.
var OpportunityStages = []string{StageDiscovery, StageScoping, StageProposal, StageNegotiation, StageClosedWon, StageClosedLost}

// StageClosed reports whether a stage ends the pipeline.
func StageClosed(stage string) bool {
	return stage == StageClosedWon || stage == StageClosedLost
}

type Opportunity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ClientID    *string    `json:"client_id,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Stage       string     `json:"stage" enum:"Discovery,Scoping,Proposal,Negotiation,Closed Won,Closed Lost"`
	Amount      float64    `json:"amount"`
	Probability float64    `json:"probability" minimum:"0" maximum:"1"`
	NextStep    string     `json:"next_step,omitempty"`
	NextStepDue *time.Time `json:"next_step_due,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

type Stakeholder struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Role      string  `json:"role,omitempty"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	ClientID  *string `json:"client_id,omitempty"`
	Influence string  `json:"influence" enum:"Low,Medium,High"`
	Attitude  string  `json:"attitude" enum:"Champion,Supporter,Neutral,Skeptic,Blocker"`
	Notes     string  `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

const (
	RAIDRisk       = "risk"
	RAIDAssumption = "assumption"
	RAIDIssue      = "issue"
	RAIDDependency = "dependency"
	RAIDDecision   = "decision"
)

var RAIDKinds = []string{RAIDRisk, RAIDAssumption, RAIDIssue, RAIDDependency, RAIDDecision}

const (
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"
)

const (
	RAIDOpen       = "Open"
	RAIDMonitoring = "Monitoring"
	RAIDClosed     = "Closed"
)

// RAIDItem covers risks, assumptions, issues, dependencies and decisions.
// Resolution holds the mitigation, validation, resolution or rationale
// depending on Kind.
type RAIDItem struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind" enum:"risk,assumption,issue,dependency,decision"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Severity    string     `json:"severity" enum:"Low,Medium,High"`
	Likelihood  string     `json:"likelihood" enum:"Low,Medium,High"`
	Status      string     `json:"status" enum:"Open,Monitoring,Closed"`
	Owner       string     `json:"owner,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Resolution  string     `json:"resolution,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	ClientID    *string    `json:"client_id,omitempty"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

type TimeEntry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date" format:"date"`
	Hours     float64   `json:"hours"`
	Billable  bool      `json:"billable"`
	ClientID  *string   `json:"client_id,omitempty"`
	ProjectID *string   `json:"project_id,omitempty"`
	TaskID    *string   `json:"task_id,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt string    `json:"created_at" format:"date-time"`
}

type Timer struct {
	TaskID    *string   `json:"task_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

type KnowledgeItem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Content        string   `json:"content,omitempty"`
	Category       string   `json:"category,omitempty"`
	Tags           []string `json:"tags"`
	IsPublic       bool     `json:"is_public"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
	LastAccessedAt string   `json:"last_accessed_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
