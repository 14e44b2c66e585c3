// Package e2e drives a running timeclock server through its HTTP API with
// Gherkin scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8080"

// TestContext carries HTTP state between steps of one scenario.
type TestContext struct {
	BaseURL string
	client  *http.Client

	lastStatus int
	lastBody   []byte
	lastHeader http.Header

	accessToken string
	employees   map[string]string
	runID       string
}

func NewTestContext() *TestContext {
	base := os.Getenv("E2E_BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	return &TestContext{
		BaseURL:   strings.TrimRight(base, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		employees: map[string]string{},
		runID:     strconv.FormatInt(time.Now().UnixNano()%1_000_000_000, 36),
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeader = nil
	tc.accessToken = ""
	tc.employees = map[string]string{}
}

func (tc *TestContext) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body)
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.lastHeader == nil {
		return ""
	}
	return tc.lastHeader.Get(name)
}

// GetResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var payload map[string]any
	if err := json.Unmarshal(tc.lastBody, &payload); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	value, ok := payload[field]
	if !ok {
		return nil, fmt.Errorf("field %q not found in response %s", field, tc.lastBody)
	}
	return value, nil
}

func (tc *TestContext) SetAccessToken(token string) {
	tc.accessToken = token
}

func (tc *TestContext) GetAccessToken() string {
	return tc.accessToken
}

// Code suffixes alias with the run id so repeated runs against the same
// server never collide on employee codes. Case is preserved.
func (tc *TestContext) Code(alias string) string {
	return alias + "-" + tc.runID
}

// RememberEmployee maps an employee code to the id returned on registration.
func (tc *TestContext) RememberEmployee(code, id string) {
	tc.employees[strings.ToUpper(code)] = id
}

func (tc *TestContext) EmployeeID(code string) (string, error) {
	id, ok := tc.employees[strings.ToUpper(code)]
	if !ok {
		return "", fmt.Errorf("employee %q was not registered in this scenario", code)
	}
	return id, nil
}
