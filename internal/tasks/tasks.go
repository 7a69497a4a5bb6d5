// Package tasks validates worker input for a workflow task and builds the
// data recorded in its workflow log.
package tasks

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"fieldsync/internal/backend"
	"fieldsync/internal/services"
)

// DefaultTextMaxLength applies when neither the task nor the caller sets one.
const DefaultTextMaxLength = 500

// Input carries what the worker entered. Only the fields matching the task
// type are read. Photo fields hold the uploaded URL or, when the upload was
// deferred, the photo's data URL.
type Input struct {
	BeforePhoto string
	AfterPhoto  string
	Text        string
	Checked     []string
	Selected    []string
}

// PhotoData is recorded for photo tasks.
type PhotoData struct {
	BeforePhoto string `json:"beforePhoto"`
	AfterPhoto  string `json:"afterPhoto"`
	Timestamp   string `json:"timestamp"`
}

// TextData is recorded for text tasks.
type TextData struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// CheckData is recorded for checklist tasks.
type CheckData struct {
	CheckedItems []string `json:"checkedItems"`
	CompletedAt  string   `json:"completedAt"`
}

// SelectData is recorded for select tasks.
type SelectData struct {
	SelectedValues []string `json:"selectedValues"`
	Timestamp      string   `json:"timestamp"`
}

// Builder turns worker input into workflow log data.
type Builder struct {
	textMaxLength int
	now           func() time.Time
}

// NewBuilder returns a Builder. textMaxLength is the fallback upper bound for
// text tasks whose config has none; values <= 0 use DefaultTextMaxLength.
func NewBuilder(textMaxLength int) *Builder {
	if textMaxLength <= 0 {
		textMaxLength = DefaultTextMaxLength
	}
	return &Builder{textMaxLength: textMaxLength, now: time.Now}
}

// WithClock overrides the timestamp source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	clone := *b
	clone.now = now
	return &clone
}

// Build validates in against task and returns the JSON data for the log.
func (b *Builder) Build(task backend.Task, in Input) (json.RawMessage, error) {
	stamp := b.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")

	var data any
	switch task.Type {
	case backend.TaskPhoto:
		if strings.TrimSpace(in.BeforePhoto) == "" || strings.TrimSpace(in.AfterPhoto) == "" {
			return nil, invalid(task, "both before and after photos are required")
		}
		data = PhotoData{BeforePhoto: in.BeforePhoto, AfterPhoto: in.AfterPhoto, Timestamp: stamp}
	case backend.TaskText:
		text, err := b.text(task, in.Text)
		if err != nil {
			return nil, err
		}
		data = TextData{Text: text, Timestamp: stamp}
	case backend.TaskCheck:
		checked, err := checkItems(task, in.Checked)
		if err != nil {
			return nil, err
		}
		data = CheckData{CheckedItems: checked, CompletedAt: stamp}
	case backend.TaskSelect:
		selected, err := selectValues(task, in.Selected)
		if err != nil {
			return nil, err
		}
		data = SelectData{SelectedValues: selected, Timestamp: stamp}
	default:
		return nil, invalid(task, fmt.Sprintf("unsupported task type %q", task.Type))
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode task data: %w", err)
	}
	return encoded, nil
}

func (b *Builder) text(task backend.Task, raw string) (string, error) {
	cfg, err := ParseText(task)
	if err != nil {
		return "", err
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = b.textMaxLength
	}
	text := strings.TrimSpace(raw)
	length := utf8.RuneCountInString(text)
	if length < cfg.MinLength {
		return "", invalid(task, fmt.Sprintf("enter at least %d characters", cfg.MinLength))
	}
	if length > maxLength {
		return "", invalid(task, fmt.Sprintf("enter at most %d characters", maxLength))
	}
	return text, nil
}

func checkItems(task backend.Task, checked []string) ([]string, error) {
	cfg, err := ParseCheck(task)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(cfg.Items))
	for _, item := range cfg.Items {
		known[item.ID] = struct{}{}
	}
	out := make([]string, 0, len(checked))
	for _, id := range checked {
		if _, ok := known[id]; !ok {
			return nil, invalid(task, fmt.Sprintf("unknown checklist item %q", id))
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	for _, item := range cfg.Items {
		if item.Required && !slices.Contains(out, item.ID) {
			return nil, invalid(task, "complete all required items")
		}
	}
	return out, nil
}

func selectValues(task backend.Task, selected []string) ([]string, error) {
	cfg, err := ParseSelect(task)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(selected))
	for _, value := range selected {
		if !slices.ContainsFunc(cfg.Options, func(o SelectOption) bool { return o.Value == value }) {
			return nil, invalid(task, fmt.Sprintf("unknown option %q", value))
		}
		if !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil, invalid(task, "select at least one option")
	}
	if !cfg.AllowMultiple && len(out) > 1 {
		return nil, invalid(task, "only one option may be selected")
	}
	return out, nil
}

func invalid(task backend.Task, message string) error {
	return services.Wrap(services.ErrValidation, "tasks", task.ID, message, nil)
}
