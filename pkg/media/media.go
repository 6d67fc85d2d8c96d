// Package media stores uploaded product images and returns a durable URL for them.
package media

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"
)

// File is an uploaded image as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Uploader stores a file under a logical folder and returns its retrieval URL.
type Uploader interface {
	Upload(ctx context.Context, folder string, file File) (string, error)
}

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
}

// IsAllowedType reports whether contentType is an accepted image format.
func IsAllowedType(contentType string) bool {
	mime, _, _ := strings.Cut(contentType, ";")
	return allowedTypes[strings.ToLower(strings.TrimSpace(mime))]
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatSize renders bytes with decimal (base 1000) units, e.g. 1500 -> "1.5 KB".
func FormatSize(bytes int64, decimals int) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	if decimals <= 0 {
		decimals = 2
	}
	index := int(math.Floor(math.Log(float64(bytes)) / math.Log(1000)))
	if index >= len(sizeUnits) {
		index = len(sizeUnits) - 1
	}
	value := float64(bytes) / math.Pow(1000, float64(index))
	scale := math.Pow(10, float64(decimals))
	value = math.Round(value*scale) / scale
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[index]
}
