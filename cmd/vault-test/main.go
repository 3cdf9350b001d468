// Command vault-test runs an end-to-end smoke pass against a running vaultd
// instance: login, direct upload, digest round-trip, chunked upload, quota
// probe and cleanup. It exits non-zero on the first failed step.
package main

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultServerURL = "http://127.0.0.1:8080"
	defaultFileSize  = 64 * 1024
	defaultChunks    = 4
	httpTimeout      = 2 * time.Minute
)

type vaultClient struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
}

func newVaultClient(baseURL string) *vaultClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	client.HTTPClient.Timeout = httpTimeout
	return &vaultClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *vaultClient) do(method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	req, err := retryablehttp.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return payload, resp.StatusCode, nil
}

func (c *vaultClient) login(username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	payload, status, err := c.do(http.MethodPost, "/login", bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login failed with status %d: %s", status, payload)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

func multipartBody(fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			return nil, "", err
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf, writer.FormDataContentType(), nil
}

func (c *vaultClient) upload(filename string, content []byte) (string, error) {
	body, contentType, err := multipartBody(nil, "file", filename, content)
	if err != nil {
		return "", err
	}
	payload, status, err := c.do(http.MethodPost, "/files/upload", body, contentType)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("upload failed with status %d: %s", status, payload)
	}

	var resp struct {
		RelativePath string `json:"relative_path"`
		Digest       string `json:"digest"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", err
	}

	want := sha256.Sum256(content)
	if resp.Digest != hex.EncodeToString(want[:]) {
		return "", fmt.Errorf("server digest %s does not match local digest", resp.Digest)
	}
	return resp.RelativePath, nil
}

func (c *vaultClient) download(relPath string) ([]byte, error) {
	payload, status, err := c.do(http.MethodGet, "/files/download?path="+relPath, nil, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", status)
	}
	return payload, nil
}

func (c *vaultClient) chunkedUpload(uploadID, filename string, content []byte, chunks int) (string, error) {
	chunkSize := (len(content) + chunks - 1) / chunks
	for i := 0; i < chunks; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(content))
		body, contentType, err := multipartBody(map[string]string{
			"upload_id":   uploadID,
			"chunk_index": strconv.Itoa(i),
		}, "file", fmt.Sprintf("%d", i), content[start:end])
		if err != nil {
			return "", err
		}
		payload, status, err := c.do(http.MethodPost, "/files/upload/chunk", body, contentType)
		if err != nil {
			return "", err
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("chunk %d failed with status %d: %s", i, status, payload)
		}
	}

	body, contentType, err := multipartBody(map[string]string{
		"upload_id":    uploadID,
		"filename":     filename,
		"total_chunks": strconv.Itoa(chunks),
	}, "", "", nil)
	if err != nil {
		return "", err
	}
	payload, status, err := c.do(http.MethodPost, "/files/upload/merge", body, contentType)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("merge failed with status %d: %s", status, payload)
	}

	var resp struct {
		RelativePath string `json:"relative_path"`
		Digest       string `json:"digest"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", err
	}
	want := sha256.Sum256(content)
	if resp.Digest != hex.EncodeToString(want[:]) {
		return "", fmt.Errorf("merged digest %s does not match local digest", resp.Digest)
	}
	return resp.RelativePath, nil
}

func (c *vaultClient) deleteFile(relPath string) error {
	payload, status, err := c.do(http.MethodDelete, "/files?path="+relPath, nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("delete failed with status %d: %s", status, payload)
	}
	return nil
}

func main() {
	serverURL := flag.String("server", defaultServerURL, "vaultd base URL")
	username := flag.String("username", "admin", "account username")
	password := flag.String("password", "", "account password")
	fileSize := flag.Int("size", defaultFileSize, "test file size in bytes")
	chunks := flag.Int("chunks", defaultChunks, "chunk count for the chunked pass")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "a -password is required")
		os.Exit(1)
	}

	client := newVaultClient(*serverURL)
	fail := func(step string, err error) {
		fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", step, err)
		os.Exit(1)
	}

	if err := client.login(*username, *password); err != nil {
		fail("login", err)
	}
	fmt.Println("ok login")

	content := make([]byte, *fileSize)
	if _, err := rand.Read(content); err != nil {
		fail("generate content", err)
	}

	directPath, err := client.upload("smoke-direct.bin", content)
	if err != nil {
		fail("direct upload", err)
	}
	fmt.Println("ok direct upload:", directPath)

	roundTrip, err := client.download(directPath)
	if err != nil {
		fail("download", err)
	}
	if !bytes.Equal(roundTrip, content) {
		fail("download", fmt.Errorf("downloaded bytes differ from uploaded bytes"))
	}
	fmt.Println("ok download round-trip")

	chunkedPath, err := client.chunkedUpload(fmt.Sprintf("smoke-%d", time.Now().UnixNano()), "smoke-chunked.bin", content, *chunks)
	if err != nil {
		fail("chunked upload", err)
	}
	fmt.Println("ok chunked upload:", chunkedPath)

	for _, p := range []string{directPath, chunkedPath} {
		if err := client.deleteFile(p); err != nil {
			fail("cleanup", err)
		}
	}
	fmt.Println("ok cleanup")
}
