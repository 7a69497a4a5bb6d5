package backend

import (
	"encoding/json"
	"time"

	"fieldsync/internal/geo"
)

// User is the authenticated worker.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Credentials are exchanged for tokens at login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /api/auth/login.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Store is a site assigned to the worker.
type Store struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location returns the store coordinates.
func (s Store) Location() geo.Location {
	return geo.Location{Latitude: s.Latitude, Longitude: s.Longitude}
}

// TaskType selects how a task is completed.
type TaskType string

const (
	TaskPhoto  TaskType = "photo"
	TaskText   TaskType = "text"
	TaskCheck  TaskType = "check"
	TaskSelect TaskType = "select"
)

// Task is one step of a workflow. Config is type specific.
type Task struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        TaskType        `json:"type"`
	Order       int             `json:"order"`
	Required    bool            `json:"required"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Workflow is an ordered list of tasks performed during a visit.
type Workflow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tasks       []Task `json:"tasks"`
}

// StoreVisit is returned by check-in.
type StoreVisit struct {
	ID            string     `json:"id"`
	StoreID       string     `json:"storeId"`
	WorkerID      string     `json:"workerId"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
	CheckInTime   *time.Time `json:"checkInTime,omitempty"`
	CheckOutTime  *time.Time `json:"checkOutTime,omitempty"`
	Status        string     `json:"status"`
}

// UploadResult is returned by the photo upload endpoint.
type UploadResult struct {
	URL string `json:"url"`
}
