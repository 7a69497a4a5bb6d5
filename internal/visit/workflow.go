package visit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fieldsync/internal/backend"
	"fieldsync/internal/logging"
	"fieldsync/internal/photo"
	"fieldsync/internal/queue"
	"fieldsync/internal/services"
	"fieldsync/internal/session"
	"fieldsync/internal/tasks"
)

// Progress is the worker's position in the active workflow.
type Progress struct {
	Visit *session.ActiveVisit `json:"visit,omitempty"`
	Task  *backend.Task        `json:"task,omitempty"`
	Index int                  `json:"index"`
	Total int                  `json:"total"`
	Done  bool                 `json:"done"`
}

// TaskInput is what the worker supplies to complete the current task. Photo
// fields are file paths.
type TaskInput struct {
	BeforePhoto string
	AfterPhoto  string
	Text        string
	Checked     []string
	Selected    []string
}

// TaskResult describes a completed or skipped task. Queued is set when the
// workflow log itself was deferred.
type TaskResult struct {
	Task         backend.Task    `json:"task"`
	Status       queue.LogStatus `json:"status"`
	Data         json.RawMessage `json:"data,omitempty"`
	Queued       bool            `json:"queued"`
	QueuedPhotos []string        `json:"queued_photos,omitempty"`
	Next         *Progress       `json:"next"`
}

// Workflows lists the workflows of a store. An empty storeID uses the active
// visit's store.
func (s *Service) Workflows(ctx context.Context, storeID string) ([]backend.Workflow, error) {
	if storeID == "" {
		state, err := s.sessions.Load()
		if err != nil {
			return nil, err
		}
		if state.Visit == nil {
			return nil, services.Wrap(services.ErrValidation, "visit", "workflows", "no store given and not checked in", nil)
		}
		storeID = state.Visit.StoreID
	}
	return s.api.StoreWorkflows(ctx, storeID)
}

// StartWorkflow loads a workflow for the active visit and positions the
// worker on its first task. An empty workflowID selects the store's only
// workflow.
func (s *Service) StartWorkflow(ctx context.Context, workflowID string) (Progress, error) {
	state, err := s.sessions.Load()
	if err != nil {
		return Progress{}, err
	}
	if state.Visit == nil {
		return Progress{}, services.Wrap(services.ErrValidation, "visit", "start workflow", "check in before starting a workflow", nil)
	}

	var wf backend.Workflow
	if workflowID == "" {
		workflows, err := s.api.StoreWorkflows(ctx, state.Visit.StoreID)
		if err != nil {
			return Progress{}, err
		}
		if len(workflows) != 1 {
			return Progress{}, services.Wrap(services.ErrValidation, "visit", "start workflow",
				fmt.Sprintf("store has %d workflows; choose one by id", len(workflows)), nil)
		}
		workflowID = workflows[0].ID
	}
	wf, err = s.api.Workflow(ctx, workflowID)
	if err != nil {
		return Progress{}, err
	}
	if len(wf.Tasks) == 0 {
		return Progress{}, services.Wrap(services.ErrValidation, "visit", "start workflow",
			fmt.Sprintf("workflow %s has no tasks", wf.ID), nil)
	}
	sortTasks(&wf)

	var progress Progress
	err = s.sessions.Update(func(state *session.State) error {
		if state.Visit == nil {
			return services.Wrap(services.ErrValidation, "visit", "start workflow", "not checked in", nil)
		}
		state.Visit.Workflow = &wf
		state.Visit.TaskIndex = 0
		state.Visit.TaskStatus = map[string]queue.LogStatus{}
		progress = progressOf(state.Visit)
		return nil
	})
	return progress, err
}

// Current reports the active visit and task.
func (s *Service) Current(ctx context.Context) (Progress, error) {
	state, err := s.sessions.Load()
	if err != nil {
		return Progress{}, err
	}
	return progressOf(state.Visit), nil
}

// CompleteTask validates input against the current task, records the
// workflow log, and advances to the next task.
func (s *Service) CompleteTask(ctx context.Context, input TaskInput) (TaskResult, error) {
	visit, task, err := s.currentTask()
	if err != nil {
		return TaskResult{}, err
	}

	result := TaskResult{Task: task, Status: queue.LogCompleted}
	built := tasks.Input{Text: input.Text, Checked: input.Checked, Selected: input.Selected}
	if task.Type == backend.TaskPhoto {
		if strings.TrimSpace(input.BeforePhoto) == "" || strings.TrimSpace(input.AfterPhoto) == "" {
			return TaskResult{}, services.Wrap(services.ErrValidation, "visit", task.ID, "both before and after photos are required", nil)
		}
		before, queuedBefore, err := s.uploadPhoto(ctx, input.BeforePhoto, queue.PhotoBefore, task.ID)
		if err != nil {
			return TaskResult{}, err
		}
		after, queuedAfter, err := s.uploadPhoto(ctx, input.AfterPhoto, queue.PhotoAfter, task.ID)
		if err != nil {
			return TaskResult{}, err
		}
		built.BeforePhoto, built.AfterPhoto = before, after
		for _, id := range []string{queuedBefore, queuedAfter} {
			if id != "" {
				result.QueuedPhotos = append(result.QueuedPhotos, id)
			}
		}
	}

	data, err := s.builder.Build(task, built)
	if err != nil {
		return TaskResult{}, err
	}
	result.Data = data
	return s.submit(ctx, visit, task, result)
}

// SkipTask records the current task as skipped. Required tasks cannot be
// skipped.
func (s *Service) SkipTask(ctx context.Context) (TaskResult, error) {
	visit, task, err := s.currentTask()
	if err != nil {
		return TaskResult{}, err
	}
	if task.Required {
		return TaskResult{}, services.Wrap(services.ErrValidation, "visit", task.ID,
			fmt.Sprintf("task %q is required and cannot be skipped", task.Name), nil)
	}
	return s.submit(ctx, visit, task, TaskResult{Task: task, Status: queue.LogSkipped})
}

func (s *Service) currentTask() (*session.ActiveVisit, backend.Task, error) {
	state, err := s.sessions.Load()
	if err != nil {
		return nil, backend.Task{}, err
	}
	if state.Visit == nil {
		return nil, backend.Task{}, services.Wrap(services.ErrValidation, "visit", "task", "not checked in", nil)
	}
	if state.Visit.Workflow == nil {
		return nil, backend.Task{}, services.Wrap(services.ErrValidation, "visit", "task", "no workflow started", nil)
	}
	task, ok := state.Visit.CurrentTask()
	if !ok {
		return nil, backend.Task{}, services.Wrap(services.ErrValidation, "visit", "task", "every task of the workflow has been handled", nil)
	}
	return state.Visit, task, nil
}

func (s *Service) submit(ctx context.Context, visit *session.ActiveVisit, task backend.Task, result TaskResult) (TaskResult, error) {
	entry := queue.WorkflowLog{
		WorkflowID: visit.Workflow.ID,
		TaskID:     task.ID,
		StoreID:    visit.StoreID,
		Status:     result.Status,
		Data:       result.Data,
	}
	err := s.api.SubmitWorkflowLog(ctx, entry)
	switch {
	case err == nil:
	case services.Deferrable(err):
		if _, qerr := s.enqueue(ctx, entry, err); qerr != nil {
			return TaskResult{}, qerr
		}
		result.Queued = true
	default:
		return TaskResult{}, err
	}

	err = s.sessions.Update(func(state *session.State) error {
		v := state.Visit
		if v == nil || v.Workflow == nil || v.Workflow.ID != entry.WorkflowID {
			return errors.New("active workflow changed while the task was being saved")
		}
		if v.TaskStatus == nil {
			v.TaskStatus = map[string]queue.LogStatus{}
		}
		v.TaskStatus[task.ID] = result.Status
		v.TaskIndex++
		next := progressOf(v)
		result.Next = &next
		return nil
	})
	if err != nil {
		return TaskResult{}, fmt.Errorf("save task progress: %w", err)
	}
	return result, nil
}

// uploadPhoto returns the value recorded for a photo: the uploaded URL, or
// the photo's data URL when the upload had to be queued. The second return
// is the queue item id in that case.
func (s *Service) uploadPhoto(ctx context.Context, path string, slot queue.PhotoSlot, taskID string) (string, string, error) {
	img, err := photo.Load(path)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "visit", string(slot)+" photo", "", err)
	}
	uploaded, err := s.api.UploadPhoto(ctx, img, slot, taskID)
	if err == nil && uploaded.URL != "" {
		return uploaded.URL, "", nil
	}
	if err == nil {
		err = errors.New("upload response carried no url")
	}

	dataURL := img.DataURL()
	item, qerr := s.enqueue(ctx, queue.PhotoUpload{Photo: dataURL, Type: slot, TaskID: taskID}, err)
	if qerr != nil {
		return "", "", qerr
	}
	s.logger.Debug("photo upload deferred",
		logging.String("slot", string(slot)),
		logging.String("task_id", taskID),
	)
	return dataURL, item.ID, nil
}

func progressOf(v *session.ActiveVisit) Progress {
	if v == nil {
		return Progress{}
	}
	copied := *v
	p := Progress{Visit: &copied}
	if v.Workflow == nil {
		return p
	}
	p.Total = len(v.Workflow.Tasks)
	p.Index = v.TaskIndex
	if task, ok := v.CurrentTask(); ok {
		p.Task = &task
	} else {
		p.Done = true
	}
	return p
}
