package handler

import (
	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

// --- Request → Service input ---

func toCreateTaskInput(req createTaskRequest, caller domain.Identity, idempotencyKey string) ports.CreateTaskInput {
	return ports.CreateTaskInput{
		Caller:         caller,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Priority:       req.Priority,
		Status:         req.Status,
		Progress:       req.Progress,
		AssignedTo:     []int64(req.AssignedTo),
		StartDate:      req.StartDate,
		DueDate:        req.DueDate,
		IdempotencyKey: idempotencyKey,
	}
}

func toUpdateTaskInput(req updateTaskRequest, caller domain.Identity, taskID int64) ports.UpdateTaskInput {
	return ports.UpdateTaskInput{
		Caller:      caller,
		TaskID:      taskID,
		Title:       req.Title.patch(),
		Description: req.Description.patch(),
		Category:    req.Category.patch(),
		Priority:    req.Priority.patch(),
		Status:      req.Status.patch(),
		Progress:    req.Progress.patch(),
		AssignedTo:  req.AssignedTo.patch(),
		StartDate:   req.StartDate.patch(),
		DueDate:     req.DueDate.patch(),
	}
}

// --- Service output → Response ---

func toTaskResponse(d ports.TaskDetail) taskResponse {
	ids := d.AssignedUserIDs
	if ids == nil {
		ids = []int64{}
	}
	names := d.AssignedUsernames
	if names == nil {
		names = []string{}
	}
	return taskResponse{
		ID:                d.ID,
		Title:             d.Title,
		Description:       d.Description,
		Category:          d.Category,
		Priority:          d.Priority,
		Status:            d.Status,
		Progress:          d.Progress,
		StartDate:         d.StartDate,
		DueDate:           d.DueDate,
		CreatedBy:         d.CreatedBy,
		CreatedByUsername: d.CreatedByUsername,
		AssignedUserIDs:   ids,
		AssignedUsernames: names,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}
