// Package upload публикует готовый экспорт на временном файлообменнике
// и строит QR-код со ссылкой для переноса на телефон.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	litterboxEndpoint = "https://litterbox.catbox.moe/resources/internals/api.php"
	uploadTimeout     = 30 * time.Second
	// Срок жизни файла на хостинге.
	retention = "24h"
)

// Error — ошибка загрузки с сообщением, пригодным для показа
// пользователю.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Client загружает файлы на litterbox.catbox.moe.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: uploadTimeout},
		endpoint:   litterboxEndpoint,
	}
}

// NewClientWithEndpoint нужен тестам и самодельным зеркалам.
func NewClientWithEndpoint(endpoint string) *Client {
	c := NewClient()
	c.endpoint = endpoint
	return c
}

// UploadFile отправляет файл и возвращает публичный URL. Файл живет
// на хостинге ограниченное время, это осознанный компромисс: ссылка
// нужна на минуты, а не навсегда.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Message: "Не удалось найти файл для загрузки", Err: err}
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("reqtype", "fileupload")
	w.WriteField("time", retention)
	part, err := w.CreateFormFile("fileToUpload", filepath.Base(path))
	if err != nil {
		return "", &Error{Message: "Ошибка подготовки запроса", Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return "", &Error{Message: "Ошибка подготовки запроса", Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &Error{Message: "Ошибка подготовки запроса", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", &Error{Message: "Ошибка подготовки запроса", Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Message: "Ошибка загрузки", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Message: fmt.Sprintf("Ошибка сервера: HTTP %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", &Error{Message: "Ошибка чтения ответа", Err: err}
	}
	url := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(url, "http") {
		return "", &Error{Message: fmt.Sprintf("Неожиданный ответ сервера: %s", url)}
	}
	return url, nil
}

// QRCodePNG кодирует ссылку в PNG с QR-кодом.
func QRCodePNG(url string, sizePx int) ([]byte, error) {
	if sizePx < 64 {
		sizePx = 256
	}
	png, err := qrcode.Encode(url, qrcode.Medium, sizePx)
	if err != nil {
		return nil, &Error{Message: "Не удалось построить QR-код", Err: err}
	}
	return png, nil
}
