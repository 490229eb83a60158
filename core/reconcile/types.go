package reconcile

import (
	"fmt"
	"time"
)

// RootID is the synthetic parent key of the top-level children list.
const RootID = "root"

// PendingPrefix marks provisional ids assigned to target nodes that do not exist yet.
const PendingPrefix = "pending:"

// Node is one entry of a bookmark tree: a folder or a leaf bookmark.
type Node struct {
	// ID is the stable identifier. Empty for nodes that have not been created yet.
	ID string `json:"id,omitempty"`

	// Title is the display title.
	Title string `json:"title"`

	// URL is set for leaf bookmarks only. An empty URL denotes a folder.
	URL string `json:"url,omitempty"`

	// ParentID is the id of the containing folder (RootID for top-level nodes).
	ParentID string `json:"parent_id,omitempty"`

	// Index is the position among siblings.
	Index int `json:"index"`

	// Children holds the ordered children of a folder.
	Children []Node `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n Node) IsFolder() bool {
	return len(n.Children) > 0 || n.URL == ""
}

// OperationType identifies the kind of mutation an operation performs.
type OperationType string

const (
	// OpCreate creates a node that only exists in the target tree.
	OpCreate OperationType = "create"
	// OpDelete removes a node that only exists in the original tree.
	OpDelete OperationType = "delete"
	// OpUpdate changes the title and/or url of an existing node.
	OpUpdate OperationType = "update"
	// OpMove moves one node to a parent and index.
	OpMove OperationType = "move"
	// OpReorder replays the full child order of one folder.
	OpReorder OperationType = "reorder"
)

// Scheduling priorities. Lower values run earlier.
const (
	PriorityCreate      = 10
	PriorityUpdateTitle = 20
	PriorityUpdateURL   = 25
	PriorityMove        = 40
	PriorityReorder     = 50
	PriorityDelete      = 100
)

// Relative operation costs used for statistics and strategy selection.
const (
	CostCreate         = 15
	CostDeleteLeaf     = 10
	CostDeleteFolder   = 50
	CostUpdate         = 8
	CostMove           = 12
	CostReorderPerMove = 5
)

// Target carries the operation payload. Which fields are set depends on the type:
//
//	create:  ID (provisional), ParentID, Index, Title, URL
//	delete:  ID
//	update:  ID plus the changed Title and/or URL
//	move:    ID, ParentID, Index
//	reorder: ParentID, Children
type Target struct {
	ID       string   `json:"id,omitempty"`
	ParentID string   `json:"parent_id,omitempty"`
	Index    *int     `json:"index,omitempty"`
	Title    *string  `json:"title,omitempty"`
	URL      *string  `json:"url,omitempty"`
	Children []string `json:"children,omitempty"`
}

// Operation is one atomic mutation intent within a plan.
type Operation struct {
	ID            string        `json:"id"`
	Type          OperationType `json:"type"`
	Priority      int           `json:"priority"`
	NodeID        string        `json:"node_id,omitempty"`
	Target        Target        `json:"target"`
	Dependencies  []string      `json:"dependencies,omitempty"`
	EstimatedCost int           `json:"estimated_cost"`
}

// Describe returns a short human readable summary used in progress events and logs.
func (op Operation) Describe() string {
	switch op.Type {
	case OpCreate:
		return fmt.Sprintf("create %q in %s", deref(op.Target.Title), op.Target.ParentID)
	case OpDelete:
		return fmt.Sprintf("delete %s", op.NodeID)
	case OpUpdate:
		switch {
		case op.Target.Title != nil && op.Target.URL != nil:
			return fmt.Sprintf("update %s title and url", op.NodeID)
		case op.Target.URL != nil:
			return fmt.Sprintf("update %s url", op.NodeID)
		default:
			return fmt.Sprintf("update %s title to %q", op.NodeID, deref(op.Target.Title))
		}
	case OpMove:
		return fmt.Sprintf("move %s to %s[%d]", op.NodeID, op.Target.ParentID, derefInt(op.Target.Index))
	case OpReorder:
		return fmt.Sprintf("reorder %d children of %s", len(op.Target.Children), op.Target.ParentID)
	default:
		return string(op.Type)
	}
}

// Complexity is a coarse bucket derived from the summed operation cost.
type Complexity string

const (
	ComplexityLow     Complexity = "low"
	ComplexityMedium  Complexity = "medium"
	ComplexityHigh    Complexity = "high"
	ComplexityExtreme Complexity = "extreme"
)

// rank orders complexity classes from low to extreme.
func (c Complexity) rank() int {
	switch c {
	case ComplexityLow:
		return 0
	case ComplexityMedium:
		return 1
	case ComplexityHigh:
		return 2
	case ComplexityExtreme:
		return 3
	default:
		return -1
	}
}

// StrategyType is the execution mode chosen for a plan.
type StrategyType string

const (
	StrategyIncremental StrategyType = "incremental"
	StrategyBatch       StrategyType = "batch"
	StrategyRebuild     StrategyType = "rebuild"
)

// Stats aggregates plan level statistics.
type Stats struct {
	TotalOperations int        `json:"total_operations"`
	EstimatedTime   int        `json:"estimated_time"`
	APICalls        int        `json:"api_calls"`
	Complexity      Complexity `json:"complexity"`
}

// Strategy describes how a plan should be executed and why.
type Strategy struct {
	Type            StrategyType `json:"type"`
	Reason          string       `json:"reason"`
	Recommendations []string     `json:"recommendations"`
}

// DiffResult is the immutable plan transforming an original tree into a target tree.
type DiffResult struct {
	Operations []Operation `json:"operations"`
	Stats      Stats       `json:"stats"`
	Strategy   Strategy    `json:"strategy"`
}

// IsEmpty reports whether the plan contains no operations.
func (d *DiffResult) IsEmpty() bool {
	return len(d.Operations) == 0
}

// OperationError records one failed operation.
type OperationError struct {
	Operation Operation `json:"operation"`
	Error     string    `json:"error"`

	// Err is the underlying error, kept for errors.Is/As inspection.
	Err error `json:"-"`
}

// Performance reports measured execution characteristics.
type Performance struct {
	APICallsActual   int64         `json:"api_calls_actual"`
	TimePerOperation time.Duration `json:"time_per_operation"`
	EffectiveSpeedup float64       `json:"effective_speedup"`
}

// ExecutionResult is produced once per execution attempt.
type ExecutionResult struct {
	Success            bool             `json:"success"`
	ExecutedOperations int              `json:"executed_operations"`
	FailedOperations   int              `json:"failed_operations"`
	TotalTime          time.Duration    `json:"total_time"`
	Errors             []OperationError `json:"errors"`
	Performance        Performance      `json:"performance"`

	// CreatedIDs maps the provisional id of each created node to its real id.
	CreatedIDs map[string]string `json:"created_ids,omitempty"`
}

// ProgressEvent is emitted while a plan executes.
type ProgressEvent struct {
	Completed              int           `json:"completed"`
	Total                  int           `json:"total"`
	CurrentOperation       string        `json:"current_operation"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining"`
}

// ProgressFunc receives progress events. It is called from the executing goroutine
// and must not block for long.
type ProgressFunc func(ProgressEvent)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func stringPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}
