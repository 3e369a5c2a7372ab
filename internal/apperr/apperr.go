// Package apperr defines the error taxonomy shared by the assistant components.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired marks a downstream rejection of the bearer credential.
	// It is the only condition that triggers a credential refresh and retry.
	ErrAuthExpired = errors.New("authorization expired")

	// ErrUnsupportedTool is returned for an unknown tool kind.
	ErrUnsupportedTool = errors.New("unsupported tool")

	// ErrUnresolvedDraft means a confirm or cancel command matched no pending draft.
	ErrUnresolvedDraft = errors.New("no draft found")

	// ErrTokenNotSet indicates no credential is cached.
	ErrTokenNotSet = errors.New("no token defined")
)

// Kind identifies which external call failed.
type Kind string

const (
	KindModel   Kind = "model"
	KindGateway Kind = "gateway"
)

// CallError wraps a failed model or gateway call.
type CallError struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s call failed (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ModelCall wraps err as a model call failure.
func ModelCall(status int, err error) error {
	return &CallError{Kind: KindModel, Status: status, Err: err}
}

// GatewayCall wraps err as a gateway call failure.
func GatewayCall(status int, err error) error {
	return &CallError{Kind: KindGateway, Status: status, Err: err}
}

// IsAuthExpired reports whether err should trigger a credential refresh.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}
