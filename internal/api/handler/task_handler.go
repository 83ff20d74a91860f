package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/task-system/internal/api/metrics"
	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

// TaskHandler handles HTTP requests for task operations.
type TaskHandler struct {
	service ports.TaskService
}

func NewTaskHandler(service ports.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// Create handles POST /api/tasks.
//
// @Summary      Create a task
// @Description  Any authenticated user may create a task; only admins may set assignedTo.
// @Description  A repeated Idempotency-Key returns the task created by the first request.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string             false  "Client generated key for safe retries"
// @Param        body             body      createTaskRequest  true   "Task"
// @Success      201              {object}  taskResponse
// @Success      200              {object}  taskResponse  "Replayed from Idempotency-Key"
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Failure      409              {object}  errorResponse  "Idempotency-Key bound to an unavailable task"
// @Failure      422              {object}  errorResponse
// @Router       /api/tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	key := c.Request().Header.Get("Idempotency-Key")
	task, err := h.service.CreateTask(c.Request().Context(), toCreateTaskInput(req, caller, key))
	if err != nil {
		return err
	}

	if task.AlreadyExisted {
		metrics.IdempotentReplaysTotal.Inc()
		c.Response().Header().Set("Idempotent-Replayed", "true")
		return c.JSON(http.StatusOK, toTaskResponse(*task))
	}
	metrics.TasksCreatedTotal.WithLabelValues(strconv.FormatBool(len(task.AssignedUserIDs) > 0)).Inc()
	return c.JSON(http.StatusCreated, toTaskResponse(*task))
}

// List handles GET /api/tasks.
//
// @Summary      List visible tasks
// @Description  Admins see every task; other users see tasks they created or are assigned to. Newest first.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        category  query     string  false  "Exact category"
// @Param        status    query     string  false  "Exact status"
// @Success      200       {array}   taskResponse
// @Failure      401       {object}  errorResponse
// @Router       /api/tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var q listTasksQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	tasks, err := h.service.ListTasks(c.Request().Context(), ports.ListTasksInput{
		Caller:   caller,
		Category: q.Category,
		Status:   q.Status,
	})
	if err != nil {
		return err
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return c.JSON(http.StatusOK, out)
}

// Categories handles GET /api/tasks/categories.
//
// @Summary      List distinct task categories
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   string
// @Failure      401  {object}  errorResponse
// @Router       /api/tasks/categories [get]
func (h *TaskHandler) Categories(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	categories, err := h.service.ListCategories(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

// Get handles GET /api/tasks/:id.
//
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task id"
// @Success      200  {object}  taskResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	task, err := h.service.GetTask(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponse(*task))
}

// Update handles PUT /api/tasks/:id.
//
// @Summary      Update a task
// @Description  Absent fields keep their value; null or "" clears optional fields.
// @Description  assignedTo is applied for admins only and silently ignored otherwise.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "Task id"
// @Param        body  body      updateTaskRequest  true  "Fields to change"
// @Success      200   {object}  taskResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /api/tasks/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	task, err := h.service.UpdateTask(c.Request().Context(), toUpdateTaskInput(req, caller, id))
	if err != nil {
		return err
	}
	metrics.TasksUpdatedTotal.Inc()
	return c.JSON(http.StatusOK, toTaskResponse(*task))
}

// Delete handles DELETE /api/tasks/:id.
//
// @Summary      Delete a task and its comments
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task id"
// @Success      200  {object}  messageResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteTask(c.Request().Context(), caller, id); err != nil {
		return err
	}
	metrics.TasksDeletedTotal.Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "task deleted"})
}
