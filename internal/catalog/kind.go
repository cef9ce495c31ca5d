package catalog

import (
	"path"
	"strings"
)

// Kind is the coarse content-type classification of a file.
type Kind string

// The five fixed kinds. Classify never produces anything else.
const (
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindOther    Kind = "other"
)

// kindByExt maps lowercased file extensions to their kind. Anything
// absent from this table classifies as KindOther.
var kindByExt = map[string]Kind{
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".svg":  KindImage,
	".bmp":  KindImage,

	".pdf": KindPDF,

	".mp4":  KindVideo,
	".webm": KindVideo,
	".mov":  KindVideo,
	".avi":  KindVideo,
	".mkv":  KindVideo,

	".doc":  KindDocument,
	".docx": KindDocument,
	".ppt":  KindDocument,
	".pptx": KindDocument,
	".xls":  KindDocument,
	".xlsx": KindDocument,
	".txt":  KindDocument,
	".md":   KindDocument,
	".odt":  KindDocument,
	".odp":  KindDocument,
}

// Classify returns the kind for a file name by its lowercased
// extension. Names without an extension classify as KindOther.
func Classify(name string) Kind {
	if k, ok := kindByExt[strings.ToLower(path.Ext(name))]; ok {
		return k
	}
	return KindOther
}

// ValidKind reports whether s names one of the five kinds.
func ValidKind(s string) bool {
	switch Kind(s) {
	case KindImage, KindPDF, KindVideo, KindDocument, KindOther:
		return true
	}
	return false
}
