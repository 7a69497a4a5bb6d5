package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"fieldsync/internal/geo"
	"fieldsync/internal/photo"
	"fieldsync/internal/queue"
)

// Login exchanges credentials for access and refresh tokens.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	var out LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", creds, &out)
	return out, err
}

// Logout invalidates the current session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out, err
}

// AssignedStores lists the stores assigned to the worker, in backend order.
func (c *Client) AssignedStores(ctx context.Context) ([]Store, error) {
	var out []Store
	err := c.doJSON(ctx, http.MethodGet, "/api/stores/assigned", nil, &out)
	return out, err
}

// StoreWorkflows lists the workflows scheduled for a store.
func (c *Client) StoreWorkflows(ctx context.Context, storeID string) ([]Workflow, error) {
	var out []Workflow
	err := c.doJSON(ctx, http.MethodGet, "/api/stores/"+url.PathEscape(storeID)+"/workflows", nil, &out)
	return out, err
}

// Workflow fetches a workflow with its tasks.
func (c *Client) Workflow(ctx context.Context, workflowID string) (Workflow, error) {
	var out Workflow
	err := c.doJSON(ctx, http.MethodGet, "/api/workflows/"+url.PathEscape(workflowID), nil, &out)
	return out, err
}

// SubmitWorkflowLog records the outcome of one task.
func (c *Client) SubmitWorkflowLog(ctx context.Context, entry queue.WorkflowLog) error {
	return c.doJSON(ctx, http.MethodPost, "/api/workflow-logs", entry, nil)
}

// CheckIn starts a visit at storeID.
func (c *Client) CheckIn(ctx context.Context, storeID string, at geo.Location) (StoreVisit, error) {
	body := struct {
		StoreID  string       `json:"storeId"`
		Location geo.Location `json:"location"`
	}{StoreID: storeID, Location: at}
	var out StoreVisit
	err := c.doJSON(ctx, http.MethodPost, "/api/attendance/check-in", body, &out)
	return out, err
}

// CheckOut ends a visit.
func (c *Client) CheckOut(ctx context.Context, visitID string) error {
	body := struct {
		VisitID string `json:"visitId"`
	}{VisitID: visitID}
	return c.doJSON(ctx, http.MethodPost, "/api/attendance/check-out", body, nil)
}

// UploadPhoto sends a task photo as multipart form data with the fields
// file, type, and taskId.
func (c *Client) UploadPhoto(ctx context.Context, img photo.Image, slot queue.PhotoSlot, taskID string) (UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, img.FileName(string(slot), c.now().UnixMilli())))
	header.Set("Content-Type", img.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return UploadResult{}, fmt.Errorf("write file part: %w", err)
	}
	if err := writer.WriteField("type", string(slot)); err != nil {
		return UploadResult{}, fmt.Errorf("write type field: %w", err)
	}
	if err := writer.WriteField("taskId", taskID); err != nil {
		return UploadResult{}, fmt.Errorf("write taskId field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/photos/upload", &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResult
	if err := c.send(ctx, req, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}
