package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaultfs/pkg/config"
	"vaultfs/pkg/models"
	"vaultfs/pkg/users"
	"vaultfs/pkg/vault"
)

// ServerTestSuite drives the HTTP surface end to end: real router, real
// SQLite user store and real on-disk storage in a per-test temp directory.
type ServerTestSuite struct {
	suite.Suite
	tempDir    string
	cfg        *config.Config
	userStore  *users.Store
	srv        *Server
	adminToken string
	aliceToken string
	alice      *models.User
	admin      *models.User
}

func (s *ServerTestSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "server-test-*")
	s.Require().NoError(err)

	dataDir := filepath.Join(s.tempDir, "data")
	tempDir := filepath.Join(s.tempDir, "temp")
	s.Require().NoError(os.MkdirAll(dataDir, 0o750))
	s.Require().NoError(os.MkdirAll(tempDir, 0o750))

	s.cfg = &config.Config{
		Listen:            "127.0.0.1:0",
		DataDir:           dataDir,
		TempDir:           tempDir,
		DBPath:            filepath.Join(s.tempDir, "users.db"),
		Secret:            "test-secret-0123456789abcdef",
		TokenTTL:          time.Hour,
		DefaultQuotaBytes: 1 << 20,
		ShutdownTimeout:   time.Second,
		LogLevel:          "info",
	}

	s.userStore, err = users.NewStore(s.cfg.DBPath)
	s.Require().NoError(err)

	s.srv = New(s.cfg, s.userStore, vault.New(dataDir, tempDir))
	s.srv.setupRoutes()

	s.admin, err = s.userStore.Create("admin", "adminpw123", true, 0)
	s.Require().NoError(err)
	s.alice, err = s.userStore.Create("alice", "alicepw123", false, 1<<20)
	s.Require().NoError(err)

	s.adminToken = s.login("admin", "adminpw123")
	s.aliceToken = s.login("alice", "alicepw123")
}

func (s *ServerTestSuite) TearDownTest() {
	if s.userStore != nil {
		s.Require().NoError(s.userStore.Close())
	}
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func (s *ServerTestSuite) request(method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.srv.echo.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) login(username, password string) string {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	s.Require().NoError(err)

	rec := s.request(http.MethodPost, "/login", "", bytes.NewReader(payload), "application/json")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.TokenResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (s *ServerTestSuite) multipart(fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, val := range fields {
		s.Require().NoError(writer.WriteField(key, val))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		s.Require().NoError(err)
		_, err = part.Write(content)
		s.Require().NoError(err)
	}
	s.Require().NoError(writer.Close())
	return buf, writer.FormDataContentType()
}

func (s *ServerTestSuite) upload(token, filename string, content []byte) models.UploadResponse {
	body, contentType := s.multipart(nil, "file", filename, content)
	rec := s.request(http.MethodPost, "/files/upload", token, body, contentType)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.UploadResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// TestLogin tests credential exchange and its rejections.
func (s *ServerTestSuite) TestLogin() {
	s.NotEmpty(s.aliceToken)

	payload, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	rec := s.request(http.MethodPost, "/login", "", bytes.NewReader(payload), "application/json")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.request(http.MethodPost, "/login", "", strings.NewReader(`{"username":"alice"}`), "application/json")
	s.Equal(http.StatusBadRequest, rec.Code)
}

// TestAuthRequired tests the token gate on the authed group.
func (s *ServerTestSuite) TestAuthRequired() {
	rec := s.request(http.MethodGet, "/me", "", nil, "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.request(http.MethodGet, "/me", "not-a-token", nil, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

// TestChangePassword tests the self-service password change: wrong current
// password is refused, a weak replacement is refused, and after a successful
// change only the new password authenticates.
func (s *ServerTestSuite) TestChangePassword() {
	payload, _ := json.Marshal(map[string]string{
		"current_password": "wrong",
		"new_password":     "replacement1",
	})
	rec := s.request(http.MethodPost, "/me/password", s.aliceToken, bytes.NewReader(payload), "application/json")
	s.Equal(http.StatusForbidden, rec.Code)
	s.Contains(rec.Body.String(), "incorrect current password")

	payload, _ = json.Marshal(map[string]string{
		"current_password": "alicepw123",
		"new_password":     "short",
	})
	rec = s.request(http.MethodPost, "/me/password", s.aliceToken, bytes.NewReader(payload), "application/json")
	s.Equal(http.StatusBadRequest, rec.Code)

	payload, _ = json.Marshal(map[string]string{
		"current_password": "alicepw123",
		"new_password":     "replacement1",
	})
	rec = s.request(http.MethodPost, "/me/password", s.aliceToken, bytes.NewReader(payload), "application/json")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.NotEmpty(s.login("alice", "replacement1"))

	old, _ := json.Marshal(map[string]string{"username": "alice", "password": "alicepw123"})
	rec = s.request(http.MethodPost, "/login", "", bytes.NewReader(old), "application/json")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

// TestUploadDownloadFlow tests the main path: upload, quota accounting,
// verified download, delete, recompute.
func (s *ServerTestSuite) TestUploadDownloadFlow() {
	content := []byte("round trip payload")
	want := sha256.Sum256(content)

	resp := s.upload(s.aliceToken, "trip.txt", content)
	s.Equal("trip.txt", resp.RelativePath)
	s.Equal(hex.EncodeToString(want[:]), resp.Digest)

	rec := s.request(http.MethodGet, "/me", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var quota models.QuotaResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &quota))
	s.Equal(int64(len(content)), quota.UsedBytes)

	rec = s.request(http.MethodGet, "/files/download?path=trip.txt", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(string(models.IntegrityVerified), rec.Header().Get(integrityHeader))
	s.Equal(content, rec.Body.Bytes())

	rec = s.request(http.MethodDelete, "/files?path=trip.txt", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.request(http.MethodGet, "/me", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &quota))
	s.Zero(quota.UsedBytes)
}

// TestUploadQuotaRejected tests the 413 mapping.
func (s *ServerTestSuite) TestUploadQuotaRejected() {
	s.Require().NoError(s.userStore.SetQuota(s.alice.ID, 10))

	body, contentType := s.multipart(nil, "file", "big.bin", bytes.Repeat([]byte("x"), 100))
	rec := s.request(http.MethodPost, "/files/upload", s.aliceToken, body, contentType)
	s.Equal(http.StatusRequestEntityTooLarge, rec.Code)
	s.Contains(rec.Body.String(), "Quota exceeded.")
}

// TestTraversalRejected tests the 403 mapping for escaping paths.
func (s *ServerTestSuite) TestTraversalRejected() {
	rec := s.request(http.MethodGet, "/files/download?path=../../etc/passwd", s.aliceToken, nil, "")
	s.Equal(http.StatusForbidden, rec.Code)
}

// TestChunkedUploadFlow tests chunk, merge and the digest equivalence with a
// direct upload.
func (s *ServerTestSuite) TestChunkedUploadFlow() {
	content := bytes.Repeat([]byte("chunked-payload-"), 512)
	want := sha256.Sum256(content)

	chunkSize := 2000
	total := 0
	for i := 0; i*chunkSize < len(content); i++ {
		end := min((i+1)*chunkSize, len(content))
		body, contentType := s.multipart(map[string]string{
			"upload_id":   "http-test",
			"chunk_index": strconv.Itoa(i),
		}, "file", fmt.Sprintf("%d", i), content[i*chunkSize:end])
		rec := s.request(http.MethodPost, "/files/upload/chunk", s.aliceToken, body, contentType)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		total++
	}

	body, contentType := s.multipart(map[string]string{
		"upload_id":    "http-test",
		"filename":     "assembled.bin",
		"total_chunks": strconv.Itoa(total),
	}, "", "", nil)
	rec := s.request(http.MethodPost, "/files/upload/merge", s.aliceToken, body, contentType)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.UploadResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(hex.EncodeToString(want[:]), resp.Digest)
	s.Equal(int64(len(content)), resp.Size)
}

// TestMergeMissingChunk tests the 400 mapping with the missing index named.
func (s *ServerTestSuite) TestMergeMissingChunk() {
	body, contentType := s.multipart(map[string]string{
		"upload_id":   "gappy",
		"chunk_index": "0",
	}, "file", "0", []byte("only chunk zero"))
	rec := s.request(http.MethodPost, "/files/upload/chunk", s.aliceToken, body, contentType)
	s.Require().Equal(http.StatusOK, rec.Code)

	body, contentType = s.multipart(map[string]string{
		"upload_id":    "gappy",
		"filename":     "gap.bin",
		"total_chunks": "3",
	}, "", "", nil)
	rec = s.request(http.MethodPost, "/files/upload/merge", s.aliceToken, body, contentType)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "Missing chunk 1")
}

// TestCancelUnknownUpload tests the 404 mapping on cancel.
func (s *ServerTestSuite) TestCancelUnknownUpload() {
	body, contentType := s.multipart(map[string]string{"upload_id": "ghost"}, "", "", nil)
	rec := s.request(http.MethodPost, "/files/upload/cancel", s.aliceToken, body, contentType)
	s.Equal(http.StatusNotFound, rec.Code)
}

// TestShareFlow tests issue, unauthenticated fetch and revoke.
func (s *ServerTestSuite) TestShareFlow() {
	content := []byte("shared bytes")
	s.upload(s.aliceToken, "pub.txt", content)

	rec := s.request(http.MethodPost, "/files/share?path=pub.txt", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var share models.ShareResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &share))
	s.NotEmpty(share.Token)

	// No Authorization header on the shared route.
	rec = s.request(http.MethodGet, "/shared/"+share.Token, "", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(content, rec.Body.Bytes())

	rec = s.request(http.MethodDelete, "/files/share?path=pub.txt", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.request(http.MethodGet, "/shared/"+share.Token, "", nil, "")
	s.Equal(http.StatusNotFound, rec.Code)

	// Revoking again has nothing to clear.
	rec = s.request(http.MethodDelete, "/files/share?path=pub.txt", s.aliceToken, nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
}

// TestFolderFlow tests create, duplicate rejection, listing and recursive
// delete.
func (s *ServerTestSuite) TestFolderFlow() {
	body, contentType := s.multipart(map[string]string{"path": "", "name": "docs"}, "", "", nil)
	rec := s.request(http.MethodPost, "/folders", s.aliceToken, body, contentType)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body, contentType = s.multipart(map[string]string{"path": "", "name": "docs"}, "", "", nil)
	rec = s.request(http.MethodPost, "/folders", s.aliceToken, body, contentType)
	s.Equal(http.StatusConflict, rec.Code)

	uploadBody, uploadType := s.multipart(map[string]string{"folder": "docs"}, "file", "inner.txt", []byte("inner"))
	rec = s.request(http.MethodPost, "/files/upload", s.aliceToken, uploadBody, uploadType)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.request(http.MethodGet, "/files?path=docs", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var listing models.ListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listing))
	s.Require().Len(listing.Entries, 1)
	s.Equal("inner.txt", listing.Entries[0].Name)
	s.Equal("docs/inner.txt", listing.Entries[0].RelativePath)

	rec = s.request(http.MethodDelete, "/folders?path=docs", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.request(http.MethodGet, "/me", s.aliceToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var quota models.QuotaResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &quota))
	s.Zero(quota.UsedBytes)
}

// TestArchiveInspection tests the 422 mapping for non-zip content.
func (s *ServerTestSuite) TestArchiveInspection() {
	s.upload(s.aliceToken, "fake.zip", []byte("not a zip"))

	rec := s.request(http.MethodGet, "/files/archive?path=fake.zip", s.aliceToken, nil, "")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

// TestAdminAccess tests the admin gate and the account-management endpoints.
func (s *ServerTestSuite) TestAdminAccess() {
	rec := s.request(http.MethodGet, "/admin/users", s.aliceToken, nil, "")
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.request(http.MethodGet, "/admin/users", s.adminToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var list []models.User
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Len(list, 2)

	payload, _ := json.Marshal(map[string]any{"username": "carol", "password": "carolpw123"})
	rec = s.request(http.MethodPost, "/admin/users", s.adminToken, bytes.NewReader(payload), "application/json")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created models.User
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.Equal(s.cfg.DefaultQuotaBytes, created.QuotaBytes)

	rec = s.request(http.MethodPost, "/admin/users", s.adminToken, bytes.NewReader(payload), "application/json")
	s.Equal(http.StatusConflict, rec.Code)
}

// TestAdminQuotaAndFlags tests quota updates and the self-change guards.
func (s *ServerTestSuite) TestAdminQuotaAndFlags() {
	target := fmt.Sprintf("/admin/users/%d/quota", s.alice.ID)
	rec := s.request(http.MethodPut, target, s.adminToken, strings.NewReader(`{"quota_bytes":2048}`), "application/json")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	loaded, err := s.userStore.GetByID(s.alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(2048), loaded.QuotaBytes)

	rec = s.request(http.MethodPost, fmt.Sprintf("/admin/users/%d/toggle_admin", s.admin.ID), s.adminToken, nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.request(http.MethodPost, fmt.Sprintf("/admin/users/%d/toggle_admin", s.alice.ID), s.adminToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	loaded, err = s.userStore.GetByID(s.alice.ID)
	s.Require().NoError(err)
	s.True(loaded.IsAdmin)

	rec = s.request(http.MethodPut, "/admin/users/999/quota", s.adminToken, strings.NewReader(`{"quota_bytes":1}`), "application/json")
	s.Equal(http.StatusNotFound, rec.Code)
}

// TestAdminDeleteUser tests account removal including the on-disk subtree.
func (s *ServerTestSuite) TestAdminDeleteUser() {
	s.upload(s.aliceToken, "doomed.txt", []byte("going away"))

	rec := s.request(http.MethodDelete, fmt.Sprintf("/admin/users/%d", s.admin.ID), s.adminToken, nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.request(http.MethodDelete, fmt.Sprintf("/admin/users/%d", s.alice.ID), s.adminToken, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	_, err := os.Stat(filepath.Join(s.cfg.DataDir, strconv.FormatInt(s.alice.ID, 10)))
	s.True(os.IsNotExist(err))

	// The deleted account's token no longer authenticates.
	rec = s.request(http.MethodGet, "/me", s.aliceToken, nil, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
