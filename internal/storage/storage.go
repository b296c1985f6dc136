package storage

import "errors"

var (
	ErrEditorExists     = errors.New("editor exists")
	ErrEditorNotFound   = errors.New("editor not found")
	ErrMaterialNotFound = errors.New("material not found")
	ErrDraftNotFound    = errors.New("draft not found")
)
