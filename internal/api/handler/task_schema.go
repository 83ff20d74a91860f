package handler

import (
	"encoding/json"
	"time"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Request / Response types ---

type createTaskRequest struct {
	Title       string       `json:"title"       validate:"required,notblank"`
	Description *string      `json:"description"`
	Category    *string      `json:"category"`
	Priority    *string      `json:"priority"`
	Status      *string      `json:"status"`
	Progress    *int         `json:"progress"`
	AssignedTo  assigneeList `json:"assignedTo"  swaggertype:"array,integer"`
	StartDate   *string      `json:"startDate"`
	DueDate     *string      `json:"dueDate"`
}

// updateTaskRequest distinguishes absent fields from explicit nulls.
type updateTaskRequest struct {
	Title       optional[string]          `json:"title"       swaggertype:"string"`
	Description optional[string]          `json:"description" swaggertype:"string"`
	Category    optional[string]          `json:"category"    swaggertype:"string"`
	Priority    optional[string]          `json:"priority"    swaggertype:"string"`
	Status      optional[string]          `json:"status"      swaggertype:"string"`
	Progress    optional[int]             `json:"progress"    swaggertype:"integer"`
	AssignedTo  optional[json.RawMessage] `json:"assignedTo"  swaggertype:"array,integer"`
	StartDate   optional[string]          `json:"startDate"   swaggertype:"string"`
	DueDate     optional[string]          `json:"dueDate"     swaggertype:"string"`
}

type listTasksQuery struct {
	Category string `query:"category"`
	Status   string `query:"status"`
}

// Response-only types owned by the transport layer.

type taskResponse struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       *string   `json:"description"`
	Category          *string   `json:"category"`
	Priority          *string   `json:"priority"`
	Status            string    `json:"status"`
	Progress          int       `json:"progress"`
	StartDate         *string   `json:"startDate"`
	DueDate           *string   `json:"dueDate"`
	CreatedBy         int64     `json:"createdBy"`
	CreatedByUsername string    `json:"createdByUsername"`
	AssignedUserIDs   []int64   `json:"assignedUserIds"`
	AssignedUsernames []string  `json:"assignedUsernames"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
