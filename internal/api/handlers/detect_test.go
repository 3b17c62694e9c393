package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func uploadContext(t *testing.T, field, filename, content string) (*gin.Context, *multipart.FileHeader) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("build multipart form: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	fileHeader, err := c.FormFile(field)
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	return c, fileHeader
}

func TestSpoolUploadUniquePaths(t *testing.T) {
	c1, fh1 := uploadContext(t, "video", "clip.mp4", "first upload")
	c2, fh2 := uploadContext(t, "video", "clip.mp4", "second upload")

	path1, err := spoolUpload(c1, fh1)
	if err != nil {
		t.Fatalf("spool first upload: %v", err)
	}
	defer os.Remove(path1)

	path2, err := spoolUpload(c2, fh2)
	if err != nil {
		t.Fatalf("spool second upload: %v", err)
	}
	defer os.Remove(path2)

	// Same client filename must never share a spool path.
	if path1 == path2 {
		t.Fatalf("uploads with the same filename collided at %s", path1)
	}

	first, err := os.ReadFile(path1)
	if err != nil {
		t.Fatalf("read first spool: %v", err)
	}
	second, err := os.ReadFile(path2)
	if err != nil {
		t.Fatalf("read second spool: %v", err)
	}
	if string(first) != "first upload" || string(second) != "second upload" {
		t.Fatalf("spooled contents clobbered: %q / %q", first, second)
	}
}

func TestSpoolUploadKeepsExtension(t *testing.T) {
	c, fh := uploadContext(t, "video", "survey.avi", "frames")

	path, err := spoolUpload(c, fh)
	if err != nil {
		t.Fatalf("spool upload: %v", err)
	}
	defer os.Remove(path)

	if filepath.Ext(path) != ".avi" {
		t.Fatalf("extension lost: %s", path)
	}
	if !strings.Contains(filepath.Base(path), "upload_") {
		t.Fatalf("unexpected spool name: %s", path)
	}
}
