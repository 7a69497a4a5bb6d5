package tasks

import (
	"encoding/json"
	"fmt"

	"fieldsync/internal/backend"
	"fieldsync/internal/services"
)

// TextConfig constrains a text task.
type TextConfig struct {
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
}

// CheckItem is one checklist entry.
type CheckItem struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
}

// CheckConfig lists the items of a checklist task.
type CheckConfig struct {
	Items []CheckItem `json:"items"`
}

// SelectOption is one choice of a select task.
type SelectOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// SelectConfig lists the options of a select task.
type SelectConfig struct {
	Options       []SelectOption `json:"options"`
	AllowMultiple bool           `json:"allowMultiple,omitempty"`
}

// ParseText decodes the config of a text task.
func ParseText(task backend.Task) (TextConfig, error) {
	var cfg TextConfig
	return cfg, decodeConfig(task, &cfg)
}

// ParseCheck decodes the config of a checklist task.
func ParseCheck(task backend.Task) (CheckConfig, error) {
	var cfg CheckConfig
	return cfg, decodeConfig(task, &cfg)
}

// ParseSelect decodes the config of a select task.
func ParseSelect(task backend.Task) (SelectConfig, error) {
	var cfg SelectConfig
	return cfg, decodeConfig(task, &cfg)
}

// A missing or null config decodes to the zero value.
func decodeConfig(task backend.Task, out any) error {
	if len(task.Config) == 0 || string(task.Config) == "null" {
		return nil
	}
	if err := json.Unmarshal(task.Config, out); err != nil {
		return services.Wrap(services.ErrValidation, "tasks", "parse config",
			fmt.Sprintf("task %s has malformed %s config", task.ID, task.Type), err)
	}
	return nil
}
