// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrTaskNotFound indicates the requested task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrArtifactNotFound indicates the requested artifact does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrNoExecutor indicates no registered executor matched any of the
// extensions carried by an inbound message.
var ErrNoExecutor = errors.New("no executor found for extensions")

// ErrMissingIdentifiers indicates an execution could not be addressed to a
// task/context pair because taskId or contextId was absent.
var ErrMissingIdentifiers = errors.New("taskId and contextId are required")

// ErrValidation indicates a value failed schema validation at a boundary.
var ErrValidation = errors.New("validation failed")

// ErrStorage indicates the storage adapter failed or is not configured.
var ErrStorage = errors.New("storage error")
