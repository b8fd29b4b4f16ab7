package util

import "errors"

var (
	ErrNoExtractableText = errors.New("document is empty or unreadable")
	ErrUnsupportedType   = errors.New("unsupported document type")

	ErrKnowledgeUnavailable = errors.New("knowledge snapshot unavailable")
)
