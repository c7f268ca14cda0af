package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/pkg/errors"
)

// ErrUnauthorized is returned when the backend rejects the session token.
// The session is cleared before it is returned.
var ErrUnauthorized = errors.New("session expired, log in again")

// APIError is a non-2xx answer from the backend
type APIError struct {
	Status    int
	Message   string
	Fields    map[string]string
	Conflicts []json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return fmt.Sprintf("api: %d %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
}

// StatusOf extracts the HTTP status of an API error, 0 otherwise
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client talks to the attendance REST API on behalf of one session
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session *session.Session
}

// New creates a client for baseURL, e.g. http://localhost:8000/api
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Session: &session.Session{},
	}
}

type envelope struct {
	Success   bool              `json:"success"`
	Data      json.RawMessage   `json:"data"`
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields"`
	Conflicts []json.RawMessage `json:"conflicts"`
}

// do sends a request and decodes the data member of the envelope into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.Session.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return errors.Wrapf(err, "decode %s %s (status %d)", method, path, resp.StatusCode)
		}
	}
	if resp.StatusCode == http.StatusUnauthorized && c.Session.Valid() && !strings.HasSuffix(path, "/login") {
		c.Session.Clear()
		return ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Fields: env.Fields, Conflicts: env.Conflicts}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, "decode data")
		}
	}
	return nil
}

func (c *Client) login(ctx context.Context, path, username, password string) (models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, path, nil, models.LoginInput{Username: username, Password: password}, &resp)
	if err != nil {
		return resp, err
	}
	c.Session.Set(resp.AccessToken, resp.Role, resp.User)
	return resp, nil
}

// Login authenticates with the endpoint matching role and stores the token
// in the client's session
func (c *Client) Login(ctx context.Context, role session.Role, username, password string) (models.LoginResponse, error) {
	switch role {
	case session.RoleAdmin:
		return c.login(ctx, "/admin/login", username, password)
	case session.RoleArea:
		return c.login(ctx, "/supervisors/login", username, password)
	case session.RoleWorker:
		return c.login(ctx, "/workers/login", username, password)
	}
	return models.LoginResponse{}, errors.Errorf("unknown role %q", role)
}

// Logout only forgets the token; the backend keeps no session state
func (c *Client) Logout() {
	c.Session.Clear()
}

func (c *Client) Me(ctx context.Context) (session.User, error) {
	var out struct {
		User session.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/me", nil, nil, &out)
	return out.User, err
}

// ServerLocation is the timezone the backend counts attendance days in.
// A zone name the client cannot load falls back to the server's current
// UTC offset.
func (c *Client) ServerLocation(ctx context.Context) (*time.Location, error) {
	var out struct {
		Timezone string `json:"timezone"`
		Offset   int    `json:"utc_offset"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Timezone != "" && out.Timezone != "Local" {
		if loc, err := time.LoadLocation(out.Timezone); err == nil {
			return loc, nil
		}
	}
	return time.FixedZone(out.Timezone, out.Offset), nil
}

func idPath(prefix string, id uint) string {
	return prefix + "/" + strconv.FormatUint(uint64(id), 10)
}

func (c *Client) Zones(ctx context.Context) ([]models.ZoneResponse, error) {
	var out []models.ZoneResponse
	err := c.do(ctx, http.MethodGet, "/zones", nil, nil, &out)
	return out, err
}

func (c *Client) Zone(ctx context.Context, id uint) (models.ZoneResponse, error) {
	var out models.ZoneResponse
	err := c.do(ctx, http.MethodGet, idPath("/zones", id), nil, nil, &out)
	return out, err
}

func (c *Client) CreateZone(ctx context.Context, in models.ZoneInput) (models.ZoneResponse, error) {
	var out models.ZoneResponse
	err := c.do(ctx, http.MethodPost, "/zones", nil, in, &out)
	return out, err
}

func (c *Client) UpdateZone(ctx context.Context, id uint, in models.ZoneInput) (models.ZoneResponse, error) {
	var out models.ZoneResponse
	err := c.do(ctx, http.MethodPut, idPath("/zones", id), nil, in, &out)
	return out, err
}

func (c *Client) DeleteZone(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, idPath("/zones", id), nil, nil, nil)
}

// AssignmentFilter narrows Assignments. Zero values are ignored.
type AssignmentFilter struct {
	WorkerID  uint
	CreatorID uint
}

func (f AssignmentFilter) values() url.Values {
	q := url.Values{}
	if f.WorkerID != 0 {
		q.Set("worker_id", strconv.FormatUint(uint64(f.WorkerID), 10))
	}
	if f.CreatorID != 0 {
		q.Set("creator_id", strconv.FormatUint(uint64(f.CreatorID), 10))
	}
	return q
}

func (c *Client) Assignments(ctx context.Context, f AssignmentFilter) ([]models.AssignmentResponse, error) {
	var out []models.AssignmentResponse
	err := c.do(ctx, http.MethodGet, "/assignments", f.values(), nil, &out)
	return out, err
}

func (c *Client) Assignment(ctx context.Context, id uint) (models.AssignmentResponse, error) {
	var out models.AssignmentResponse
	err := c.do(ctx, http.MethodGet, idPath("/assignments", id), nil, nil, &out)
	return out, err
}

func (c *Client) CreateAssignment(ctx context.Context, in models.AssignmentInput) (models.AssignmentResponse, error) {
	var out models.AssignmentResponse
	err := c.do(ctx, http.MethodPost, "/assignments", nil, in, &out)
	return out, err
}

func (c *Client) UpdateAssignment(ctx context.Context, id uint, in models.AssignmentInput) (models.AssignmentResponse, error) {
	var out models.AssignmentResponse
	err := c.do(ctx, http.MethodPut, idPath("/assignments", id), nil, in, &out)
	return out, err
}

func (c *Client) DeleteAssignment(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, idPath("/assignments", id), nil, nil, nil)
}

// ValidateAssignment dry-runs in. Pass id 0 for a new assignment.
func (c *Client) ValidateAssignment(ctx context.Context, id uint, in models.AssignmentInput) (models.AssignmentCheck, error) {
	q := url.Values{}
	if id != 0 {
		q.Set("id", strconv.FormatUint(uint64(id), 10))
	}
	var out models.AssignmentCheck
	err := c.do(ctx, http.MethodPost, "/assignments/validate", q, in, &out)
	return out, err
}

// Eligibility asks the backend to evaluate an assignment at lat/lng. Leave
// either nil to evaluate without a position.
func (c *Client) Eligibility(ctx context.Context, id uint, lat, lng *float64) (models.EligibilityResponse, error) {
	q := url.Values{}
	if lat != nil && lng != nil {
		q.Set("lat", strconv.FormatFloat(*lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(*lng, 'f', -1, 64))
	}
	var out models.EligibilityResponse
	err := c.do(ctx, http.MethodGet, idPath("/assignments", id)+"/eligibility", q, nil, &out)
	return out, err
}

// AttendanceFilter narrows Attendance. Zero values are ignored; dates are
// YYYY-MM-DD.
type AttendanceFilter struct {
	WorkerID     uint
	CreatorID    uint
	AssignmentID uint
	Date         string
	From         string
	To           string
}

func (f AttendanceFilter) values() url.Values {
	q := AssignmentFilter{WorkerID: f.WorkerID, CreatorID: f.CreatorID}.values()
	if f.AssignmentID != 0 {
		q.Set("assignment_id", strconv.FormatUint(uint64(f.AssignmentID), 10))
	}
	for k, v := range map[string]string{"date": f.Date, "from": f.From, "to": f.To} {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

func (c *Client) Attendance(ctx context.Context, f AttendanceFilter) ([]models.MarkResponse, error) {
	var out []models.MarkResponse
	err := c.do(ctx, http.MethodGet, "/attendance", f.values(), nil, &out)
	return out, err
}

func (c *Client) Summary(ctx context.Context, workerID uint) (models.SummaryResponse, error) {
	q := url.Values{}
	if workerID != 0 {
		q.Set("worker_id", strconv.FormatUint(uint64(workerID), 10))
	}
	var out models.SummaryResponse
	err := c.do(ctx, http.MethodGet, "/attendance/summary", q, nil, &out)
	return out, err
}

// CreateMark posts a mark for the logged in worker
func (c *Client) CreateMark(ctx context.Context, req attendance.MarkRequest) (attendance.Mark, error) {
	lat, lng := req.Position.Lat, req.Position.Lng
	in := models.MarkInput{AssignmentID: req.AssignmentID, Kind: req.Kind, Lat: &lat, Lng: &lng}
	var out models.MarkResponse
	if err := c.do(ctx, http.MethodPost, "/attendance", nil, in, &out); err != nil {
		return attendance.Mark{}, err
	}
	return out.Mark, nil
}

// ListMarks returns every mark of a worker, newest first
func (c *Client) ListMarks(ctx context.Context, workerID uint) ([]attendance.Mark, error) {
	rows, err := c.Attendance(ctx, AttendanceFilter{WorkerID: workerID})
	if err != nil {
		return nil, err
	}
	marks := make([]attendance.Mark, 0, len(rows))
	for _, r := range rows {
		marks = append(marks, r.Mark)
	}
	return marks, nil
}

var _ attendance.MarkStore = (*Client)(nil)
