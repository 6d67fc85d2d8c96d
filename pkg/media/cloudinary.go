package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const cloudinaryAPI = "https://api.cloudinary.com/v1_1"

// CloudinaryConfig holds the account credentials of the media host.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	// BaseURL overrides the public API root; empty means the real service.
	BaseURL string
}

// CloudinaryUploader performs signed image uploads to Cloudinary.
type CloudinaryUploader struct {
	cfg CloudinaryConfig
	now func() time.Time
}

// NewCloudinaryUploader creates an uploader for the given account.
func NewCloudinaryUploader(cfg CloudinaryConfig) *CloudinaryUploader {
	if cfg.BaseURL == "" {
		cfg.BaseURL = cloudinaryAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CloudinaryUploader{cfg: cfg, now: time.Now}
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends file to <cloud>/image/upload and returns the secure URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, folder string, file File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, err := io.ReadAll(file.Content)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file.Name, err)
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(u.now().Unix(), 10),
	}
	if folder != "" {
		params["folder"] = folder
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	for k, v := range params {
		args.Set(k, v)
	}
	args.Set("api_key", u.cfg.APIKey)
	args.Set("signature", Sign(params, u.cfg.APISecret))

	endpoint := fmt.Sprintf("%s/%s/image/upload", strings.TrimRight(u.cfg.BaseURL, "/"), u.cfg.CloudName)
	agent := fiber.Post(endpoint).
		Timeout(u.cfg.Timeout).
		FileData(&fiber.FormFile{Fieldname: "file", Name: file.Name, Content: content}).
		MultipartForm(args)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("cloudinary upload failed: %w", errors.Join(errs...))
	}

	var resp cloudinaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("cloudinary upload returned status %d with unreadable body: %w", code, err)
	}
	if code != fiber.StatusOK || resp.SecureURL == "" {
		msg := "no secure_url in response"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return "", fmt.Errorf("cloudinary upload returned status %d: %s", code, msg)
	}
	return resp.SecureURL, nil
}

// Sign computes the Cloudinary request signature: sha1 of the sorted
// "k=v&k=v" parameter string followed by the API secret.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
