//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	. "github.com/onsi/gomega"
)

// ── HTTP helpers ──────────────────────────────────────────────────────────────

// client is one browser: it keeps its own session cookie.
type client struct {
	http *http.Client
}

func newClient() *client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		panic(fmt.Sprintf("e2e: creating cookie jar: %v", err))
	}
	return &client{http: &http.Client{Timeout: 60 * time.Second, Jar: jar}}
}

// loggedIn returns a client with an active session for email.
func loggedIn(email, password string) *client {
	c := newClient()
	resp := c.post("/auth/login", map[string]string{"email": email, "password": password})
	defer resp.Body.Close()
	ExpectWithOffset(1, resp.StatusCode).To(Equal(http.StatusOK), "login failed for "+email)
	return c
}

func (c *client) get(pathAndQuery string) *http.Response {
	resp, err := c.http.Get(url(pathAndQuery))
	if err != nil {
		panic(fmt.Sprintf("e2e: GET %s failed: %v", pathAndQuery, err))
	}
	return resp
}

// post performs a POST request with a JSON body.
func (c *client) post(pathAndQuery string, body any) *http.Response {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(fmt.Sprintf("e2e: failed to marshal body: %v", err))
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, url(pathAndQuery), bodyReader)
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to create POST request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		panic(fmt.Sprintf("e2e: POST %s failed: %v", pathAndQuery, err))
	}
	return resp
}

// ── JSON helpers ──────────────────────────────────────────────────────────────

// parseJSONObject reads and parses a JSON response body into a map.
func parseJSONObject(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var result map[string]any
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to read response body: %v", err))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		panic(fmt.Sprintf("e2e: failed to parse JSON object: %v\nbody: %s", err, string(body)))
	}
	return result
}

// parseJSONArray reads and parses a JSON response body into a slice.
func parseJSONArray(resp *http.Response) []map[string]any {
	defer resp.Body.Close()
	var result []map[string]any
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to read response body: %v", err))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		panic(fmt.Sprintf("e2e: failed to parse JSON array: %v\nbody: %s", err, string(body)))
	}
	return result
}

func books(body map[string]any) []map[string]any {
	raw, _ := body["books"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, b := range raw {
		out = append(out, b.(map[string]any))
	}
	return out
}

// ── URL helpers ───────────────────────────────────────────────────────────────

func url(pathAndQuery string) string {
	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}
	return baseURL + pathAndQuery
}

// uniqueEmail returns an address that has not been registered before.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@storia.test", prefix, time.Now().UnixNano())
}
