package http_test

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/ota-server/internal/api/http"
	"github.com/oshokin/ota-server/internal/auth"
	"github.com/oshokin/ota-server/internal/domain/update"
	"github.com/oshokin/ota-server/internal/integrity"
	"github.com/oshokin/ota-server/internal/repository/apikey"
	"github.com/oshokin/ota-server/internal/repository/registry"
	"github.com/oshokin/ota-server/internal/resolver"
	"github.com/oshokin/ota-server/internal/service/server"
	"github.com/oshokin/ota-server/internal/storage/artifact"
)

// testKeyBits keeps key generation fast; production keys are larger.
const testKeyBits = 1024

// testEnv bundles the handler under test with a direct service handle for
// seeding state.
type testEnv struct {
	handler http.Handler
	service *server.Service
	token   string
}

// newTestEnv composes the full stack over a temp directory and enrolls one
// API key the tests authenticate with.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()

	store, err := artifact.NewStore(filepath.Join(dir, "packages"), filepath.Join(dir, "trash"))
	require.NoError(t, err)

	key, err := integrity.GeneratePrivateKey(testKeyBits)
	require.NoError(t, err)

	reg := registry.NewFileRepository(filepath.Join(dir, "metadata.json"))

	svc := server.NewService(
		reg,
		store,
		integrity.NewService(key, store),
		resolver.New(reg, store, resolver.InsertionOrder(), false),
		auth.NewGate(apikey.NewFileRepository(filepath.Join(dir, "api_keys.json"))),
	)

	token, err := svc.GenerateKey(context.Background(), "test-client")
	require.NoError(t, err)

	return &testEnv{
		handler: api.NewServer(svc).Handler(),
		service: svc,
		token:   token,
	}
}

// seedBuild publishes a build with package content through the service.
func (e *testEnv) seedBuild(t *testing.T, id, version, content string) {
	t.Helper()

	_, _, err := e.service.UpsertBuild(context.Background(), update.UpsertInput{
		BuildID: id,
		Version: version,
		Package: strings.NewReader(content),
	})
	require.NoError(t, err)
}

// do sends a request with the enrolled bearer token and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+e.token)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	return rec
}

// doJSON sends a JSON body and decodes the JSON response.
func (e *testEnv) doJSON(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	rec := e.do(t, method, path, reader, "application/json")

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}

	return rec.Code, decoded
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// Health probes carry no credential.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

// TestServer_AuthRequired verifies the uniform 401 for missing and unknown
// tokens, and the X-API-Key fallback header.
func TestServer_AuthRequired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/builds", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"status":"error","message":"Unauthorized"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/builds", nil)
	req.Header.Set("Authorization", "Bearer not-a-key")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/builds", nil)
	req.Header.Set("X-API-Key", env.token)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestServer_CheckUpdate walks the device-facing decision shapes.
func TestServer_CheckUpdate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedBuild(t, "v1", "1.0.0", "one")
	env.seedBuild(t, "v2", "2.0.0", "two")

	code, body := env.doJSON(t, http.MethodPost, "/v1/check-update", jsonBody("build_id", "v1"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "update-available", body["status"])
	require.Equal(t, "v2", body["build_id"])
	require.Equal(t, "2.0.0", body["version"])
	require.Equal(t, "/packages/ota-v2.zip", body["package_url"])
	require.NotEmpty(t, body["checksum"])
	require.NotEmpty(t, body["signature"])

	code, body = env.doJSON(t, http.MethodPost, "/v1/check-update", jsonBody("build_id", "v2"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "up-to-date", body["status"])

	code, body = env.doJSON(t, http.MethodPost, "/v1/check-update", jsonBody("build_id", "ghost"))
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Build ID not found", body["message"])

	code, _ = env.doJSON(t, http.MethodPost, "/v1/check-update", map[string]any{})
	require.Equal(t, http.StatusBadRequest, code)
}

// TestServer_CheckUpdateSignature verifies the signature from check-update
// against the published public key, the way device firmware does.
func TestServer_CheckUpdateSignature(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedBuild(t, "v1", "1.0.0", "one")
	env.seedBuild(t, "v2", "2.0.0", "two")

	_, body := env.doJSON(t, http.MethodPost, "/v1/check-update", jsonBody("build_id", "v1"))
	checksum, _ := body["checksum"].(string)
	signature, _ := body["signature"].(string)
	require.NotEmpty(t, checksum)
	require.NotEmpty(t, signature)

	rec := env.do(t, http.MethodGet, "/v1/public-key", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "x-pem-file")

	block, _ := pem.Decode(rec.Body.Bytes())
	require.NotNil(t, block)

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)

	pub, ok := parsed.(*rsa.PublicKey)
	require.True(t, ok)

	sig, err := hex.DecodeString(signature)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte(checksum))
	require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig))
}

// TestServer_ValidateChecksum covers match, mismatch and unknown build.
func TestServer_ValidateChecksum(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedBuild(t, "v1", "1.0.0", "payload")

	sum := sha256.Sum256([]byte("payload"))
	good := hex.EncodeToString(sum[:])

	code, body := env.doJSON(t, http.MethodPost, "/v1/validate-checksum",
		jsonBody("build_id", "v1", "checksum", good))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", body["status"])
	require.Equal(t, true, body["is_valid"])

	code, body = env.doJSON(t, http.MethodPost, "/v1/validate-checksum",
		jsonBody("build_id", "v1", "checksum", "deadbeef"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["is_valid"])

	code, body = env.doJSON(t, http.MethodPost, "/v1/validate-checksum",
		jsonBody("build_id", "ghost", "checksum", good))
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, false, body["is_valid"])
	require.Equal(t, "Build ID not found", body["message"])
}

// TestServer_Builds covers the list and single-build reads, including the
// registry's stable ordering on the wire.
func TestServer_Builds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedBuild(t, "zeta", "1.0.0", "one")
	env.seedBuild(t, "alpha", "2.0.0", "two")

	rec := env.do(t, http.MethodGet, "/v1/builds", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Publication order survives serialization, not lexical order.
	raw := rec.Body.String()
	require.Less(t, strings.Index(raw, `"zeta"`), strings.Index(raw, `"alpha"`))

	code, body := env.doJSON(t, http.MethodGet, "/v1/builds/zeta", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1.0.0", body["version"])

	code, body = env.doJSON(t, http.MethodGet, "/v1/builds/ghost", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Build ID not found", body["message"])
}

// TestServer_Packages covers download and the signed checksum endpoint.
func TestServer_Packages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedBuild(t, "v1", "1.0.0", "firmware bytes")

	rec := env.do(t, http.MethodGet, "/packages/ota-v1.zip", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "firmware bytes", rec.Body.String())

	code, body := env.doJSON(t, http.MethodGet, "/packages/ota-ghost.zip", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Update package file not found on server", body["message"])

	sum := sha256.Sum256([]byte("firmware bytes"))

	code, body = env.doJSON(t, http.MethodGet, "/v1/checksum/ota-v1.zip", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ota-v1.zip", body["filename"])
	require.Equal(t, hex.EncodeToString(sum[:]), body["checksum"])
	require.NotEmpty(t, body["signature"])
}

// TestServer_AdminUpsertBuild covers multipart creation, the 409 conflict
// shape and overwrite.
func TestServer_AdminUpsertBuild(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	code, body := env.postBuildForm(t, map[string]string{
		"build_id":    "v1",
		"version":     "1.0.0",
		"patch_notes": "first",
	}, "package bytes")
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "created", body["status"])
	require.Equal(t, "ota-v1.zip", body["filename"])
	require.NotEmpty(t, body["checksum"])

	code, body = env.postBuildForm(t, map[string]string{
		"build_id": "v1",
		"version":  "9.9.9",
	}, "")
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "1.0.0", body["existing_version"])

	code, body = env.postBuildForm(t, map[string]string{
		"build_id":  "v1",
		"version":   "1.0.1",
		"overwrite": "true",
	}, "newer bytes")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "updated", body["status"])

	code, _ = env.postBuildForm(t, map[string]string{"version": "1.0.0"}, "")
	require.Equal(t, http.StatusBadRequest, code)
}

// TestServer_AdminDeleteBuild covers deletion and the unknown-build shape.
func TestServer_AdminDeleteBuild(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedBuild(t, "v1", "1.0.0", "bytes")

	code, body := env.doJSON(t, http.MethodDelete, "/admin/builds/v1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "deleted", body["status"])
	require.NotEmpty(t, body["trash_path"])

	code, _ = env.doJSON(t, http.MethodDelete, "/admin/builds/v1", nil)
	require.Equal(t, http.StatusNotFound, code)
}

// TestServer_AdminKeys covers the API key lifecycle over HTTP, including
// revocation taking effect immediately.
func TestServer_AdminKeys(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	code, body := env.doJSON(t, http.MethodPost, "/admin/keys", jsonBody("name", "ci"))
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "ci", body["name"])

	secret, _ := body["api_key"].(string)
	require.NotEmpty(t, secret)

	code, _ = env.doJSON(t, http.MethodPost, "/admin/keys", jsonBody("name", "ci"))
	require.Equal(t, http.StatusConflict, code)

	code, body = env.doJSON(t, http.MethodGet, "/admin/keys", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body["keys"], "ci")

	code, _ = env.doJSON(t, http.MethodDelete, "/admin/keys/ci", nil)
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/v1/builds", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	code, _ = env.doJSON(t, http.MethodDelete, "/admin/keys/ci", nil)
	require.Equal(t, http.StatusNotFound, code)
}

// postBuildForm submits the admin multipart form, attaching package content
// when non-empty.
func (e *testEnv) postBuildForm(t *testing.T, fields map[string]string, packageContent string) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer

	form := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, form.WriteField(k, v))
	}

	if packageContent != "" {
		part, err := form.CreateFormFile("package", "upload.zip")
		require.NoError(t, err)

		_, err = part.Write([]byte(packageContent))
		require.NoError(t, err)
	}

	require.NoError(t, form.Close())

	rec := e.do(t, http.MethodPost, "/admin/builds", &buf, form.FormDataContentType())

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}

	return rec.Code, decoded
}

// jsonBody builds a small JSON object from alternating key/value pairs.
func jsonBody(pairs ...string) map[string]any {
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}

	return m
}
