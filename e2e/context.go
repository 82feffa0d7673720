package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext carries the HTTP client and per-scenario state shared by every
// step package.
type TestContext struct {
	baseURL    string
	signingKey string
	adminToken string
	client     *http.Client

	userID      string
	accessToken string
	sessionID   string

	lastStatus int
	lastBody   []byte
}

// NewTestContext reads the target from E2E_* variables, defaulting to a local
// development server.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    envOr("E2E_BASE_URL", "http://localhost:8080"),
		signingKey: envOr("E2E_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		adminToken: os.Getenv("E2E_ADMIN_TOKEN"),
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Reset clears scenario state.
func (tc *TestContext) Reset() {
	tc.userID, tc.accessToken, tc.sessionID = "", "", ""
	tc.lastStatus, tc.lastBody = 0, nil
}

// Authenticate mints a token for a fresh user, signed like the server's.
func (tc *TestContext) Authenticate() error {
	tc.userID = uuid.NewString()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": tc.userID,
		"sub":     tc.userID,
		"iss":     envOr("E2E_JWT_ISSUER", "trustline"),
		"aud":     envOr("E2E_JWT_AUDIENCE", "trustline-api"),
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"jti":     uuid.NewString(),
	})
	signed, err := token.SignedString([]byte(tc.signingKey))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.accessToken = signed
	return nil
}

func (tc *TestContext) Ping() error {
	if err := tc.do(http.MethodGet, "/healthz", nil, "", nil); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusOK {
		return fmt.Errorf("service unhealthy: %d %s", tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) UserID() string             { return tc.userID }
func (tc *TestContext) SessionID() string          { return tc.sessionID }
func (tc *TestContext) SetSessionID(id string)     { tc.sessionID = id }
func (tc *TestContext) ClearAccessToken()          { tc.accessToken = "" }
func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, "", nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.doJSON(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.doJSON(http.MethodPut, path, body, nil)
}

// AdminPOST sends body with the operator token.
func (tc *TestContext) AdminPOST(path string, body any) error {
	return tc.doJSON(http.MethodPost, path, body, map[string]string{"X-Admin-Token": tc.adminToken})
}

// UploadPhoto posts a multipart photo field.
func (tc *TestContext) UploadPhoto(path, filename, contentType string, content []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="photo"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, &buf, mw.FormDataContentType(), nil)
}

func (tc *TestContext) doJSON(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
		contentType = "application/json"
	}
	return tc.do(method, path, reader, contentType, headers)
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, strings.TrimSuffix(tc.baseURL, "/")+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// GetResponseField reads a top-level or dotted field from the last JSON body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w: %s", err, tc.lastBody)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		if doc, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
	}
	return doc, nil
}
