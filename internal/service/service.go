package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEditorNotFound     = errors.New("editor not found")
	ErrEditorExists       = errors.New("editor exists")

	ErrSessionNotFound     = errors.New("session not found")
	ErrDraftNotFound       = errors.New("draft not found")
	ErrMaterialNotFound    = errors.New("material not found")
	ErrUnsupportedMaterial = errors.New("unsupported material type")

	ErrJobNotFound = errors.New("export job not found")
	ErrQueueFull   = errors.New("export queue is full")

	ErrFetchFailed    = errors.New("fetch failed")
	ErrEmptyTimeline  = errors.New("empty timeline")
	ErrRenderTimeout  = errors.New("render timed out")
	ErrRenderFailed   = errors.New("render failed")
	ErrRenderNoOutput = errors.New("render produced no output")
	ErrPublishFailed  = errors.New("publish failed")
)
