package upload

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadFile(t *testing.T) {
	var gotReqtype, gotTime, gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotReqtype = r.FormValue("reqtype")
		gotTime = r.FormValue("time")
		if f, hdr, err := r.FormFile("fileToUpload"); err == nil {
			gotFilename = hdr.Filename
			f.Close()
		}
		w.Write([]byte("https://litter.catbox.moe/abc123.gif\n"))
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(srv.URL)
	url, err := c.UploadFile(context.Background(), writeTempFile(t, "demo.gif", "GIF89a...."))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if url != "https://litter.catbox.moe/abc123.gif" {
		t.Errorf("url = %q", url)
	}
	if gotReqtype != "fileupload" || gotTime != "24h" {
		t.Errorf("поля формы: reqtype=%q time=%q", gotReqtype, gotTime)
	}
	if gotFilename != "demo.gif" {
		t.Errorf("имя файла: %q", gotFilename)
	}
}

func TestUploadFileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(srv.URL)
	_, err := c.UploadFile(context.Background(), writeTempFile(t, "x.png", "data"))
	if err == nil {
		t.Fatal("ошибка сервера должна возвращаться вызывающему")
	}
	var uerr *Error
	if !errors.As(err, &uerr) {
		t.Fatalf("ожидался *upload.Error, получено %T", err)
	}
}

func TestUploadFileUnexpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("internal failure"))
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(srv.URL)
	if _, err := c.UploadFile(context.Background(), writeTempFile(t, "x.png", "data")); err == nil {
		t.Fatal("ответ без URL должен быть ошибкой")
	}
}

func TestUploadMissingFile(t *testing.T) {
	c := NewClient()
	if _, err := c.UploadFile(context.Background(), "/nonexistent/file.png"); err == nil {
		t.Fatal("отсутствующий файл должен быть ошибкой")
	}
}

func TestQRCodePNG(t *testing.T) {
	data, err := QRCodePNG("https://litter.catbox.moe/abc123.gif", 256)
	if err != nil {
		t.Fatalf("QRCodePNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("результат не PNG: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("размер %d, ожидалось 256", img.Bounds().Dx())
	}
}
