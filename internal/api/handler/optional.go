package handler

import (
	"encoding/json"

	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

// optional records whether a JSON field was present at all. A present null
// leaves Value nil with Set true.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o optional[T]) patch() ports.Patch[T] {
	return ports.Patch[T]{Set: o.Set, Value: o.Value}
}

// assigneeList accepts the client forms of an assignment on create. Updates
// keep the raw value so it is only parsed for callers allowed to assign.
type assigneeList []int64

func (a *assigneeList) UnmarshalJSON(data []byte) error {
	ids, err := domain.ParseAssigneeJSON(data)
	if err != nil {
		return err
	}
	*a = ids
	return nil
}
