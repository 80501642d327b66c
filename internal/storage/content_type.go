package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// WorkbookContentType is the MIME type of an Office Open XML workbook.
const WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// templateTypes are the stored content types that can hold a template.
// Uploads from curl and browsers often arrive as octet-stream, and sniffing
// an .xlsx yields application/zip.
var templateTypes = map[string]bool{
	WorkbookContentType:        true,
	"application/octet-stream": true,
	"application/zip":          true,
}

// DetectContentType returns providedType when set, else the type implied by
// the filename extension, else a sniff of the first 512 bytes of data, else
// application/octet-stream.
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".xlsx" {
		// not every mime table knows .xlsx
		return WorkbookContentType
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	if data != nil {
		buf := make([]byte, 512)
		n, err := io.ReadFull(data, buf)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buf[:n])
		}
	}
	return "application/octet-stream"
}

// IsAllowedTemplateType reports whether an object of contentType may be
// used as the workbook template. Parameters such as charset are ignored.
func IsAllowedTemplateType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	return templateTypes[strings.ToLower(strings.TrimSpace(base))]
}
