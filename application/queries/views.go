package queries

import (
	"time"
)

// TaskRef is the task projection embedded in dependency views. Status and
// priority are carried for the caller's rendering needs; the dependency
// service itself never interprets them.
type TaskRef struct {
	ID       string     `json:"id"`
	Title    string     `json:"title,omitempty"`
	Status   string     `json:"status,omitempty"`
	Priority int        `json:"priority"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// DependencyRef pairs an edge with the task on its far side.
type DependencyRef struct {
	EdgeID string  `json:"edge_id"`
	Task   TaskRef `json:"task"`
}

// TaskDependenciesView is both adjacency directions for one task.
type TaskDependenciesView struct {
	TaskID    string          `json:"task_id"`
	DependsOn []DependencyRef `json:"depends_on"`
	Blocks    []DependencyRef `json:"blocks"`
}

// GraphNode is one task in the project graph view, annotated for the
// force-directed visualization.
type GraphNode struct {
	ID       string     `json:"id"`
	Title    string     `json:"title,omitempty"`
	Status   string     `json:"status,omitempty"`
	Priority int        `json:"priority"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	OnPath   bool       `json:"on_critical_path"`
}

// GraphLink is one directed dependency edge in the project graph view.
type GraphLink struct {
	EdgeID string `json:"edge_id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphStats contains graph-level counts for the visualization header.
type GraphStats struct {
	NodeCount   int `json:"node_count"`
	EdgeCount   int `json:"edge_count"`
	LongestPath int `json:"longest_path"`
}

// ProjectGraphView is the whole-project graph: distinct tasks touched by
// any edge, plus the edges themselves.
type ProjectGraphView struct {
	ProjectID string      `json:"project_id"`
	Nodes     []GraphNode `json:"nodes"`
	Links     []GraphLink `json:"links"`
	Stats     GraphStats  `json:"stats"`
}

// CriticalPathView is the longest blocking chain, ordered from the
// earliest prerequisite to the final blocked task.
type CriticalPathView struct {
	ProjectID string    `json:"project_id"`
	Path      []TaskRef `json:"path"`
	Length    int       `json:"length"`
}

// AdmissibilityView is the advisory answer to "could this edge be added".
type AdmissibilityView struct {
	Admissible bool   `json:"admissible"`
	Reason     string `json:"reason,omitempty"`
}
