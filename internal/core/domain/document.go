package domain

import (
	"path/filepath"
	"strings"
)

// FileKind is the closed set of upload types the intake service understands.
type FileKind string

const (
	KindPDF         FileKind = "pdf"
	KindPNG         FileKind = "png"
	KindJPG         FileKind = "jpg"
	KindJPEG        FileKind = "jpeg"
	KindDOCX        FileKind = "docx"
	KindUnsupported FileKind = "unsupported"
)

// KindFromFilename maps the file extension (case-insensitive) to a FileKind.
func KindFromFilename(filename string) FileKind {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "pdf":
		return KindPDF
	case "png":
		return KindPNG
	case "jpg":
		return KindJPG
	case "jpeg":
		return KindJPEG
	case "docx":
		return KindDOCX
	default:
		return KindUnsupported
	}
}

func (k FileKind) IsImage() bool {
	return k == KindPNG || k == KindJPG || k == KindJPEG
}

func (k FileKind) Supported() bool {
	switch k {
	case KindPDF, KindPNG, KindJPG, KindJPEG, KindDOCX:
		return true
	default:
		return false
	}
}

// UploadedDocument is a transient upload saved to local disk for the duration of one request.
type UploadedDocument struct {
	Filename   string   `json:"filename"`
	StorageKey string   `json:"storage_key"`
	Path       string   `json:"path"`
	Kind       FileKind `json:"kind"`
	MimeType   string   `json:"mime_type"`
	Size       int64    `json:"size"`
}

// UnsupportedFileTypeError names the rejected extension.
type UnsupportedFileTypeError struct {
	Extension string
}

func (e *UnsupportedFileTypeError) Error() string {
	return "Unsupported file type: '" + e.Extension + "'"
}

func (e *UnsupportedFileTypeError) Unwrap() error {
	return ErrUnsupportedFileType
}
