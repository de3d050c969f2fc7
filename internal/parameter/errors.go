package parameter

import (
	"errors"
	"fmt"
)

var (
	ErrConfig       = errors.New("parameter: configuration error")
	ErrValue        = errors.New("parameter: invalid value")
	ErrNotParameter = errors.New("parameter: element is not a parameter")
)

// ConfigError is a malformed structure description. Path locates the
// offending element in the description or instance tree.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfig, e.Err}
	}
	return []error{ErrConfig}
}

func configErr(path string, err error, format string, args ...any) error {
	return &ConfigError{Path: path, Reason: fmt.Sprintf(format, args...), Err: err}
}

// ValueError is a user value rejected by a type. It never corrupts the
// blackboard: conversion happens before any write.
type ValueError struct {
	Path   string
	Value  string
	Reason string
}

func (e *ValueError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid value %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: invalid value %q: %s", e.Path, e.Value, e.Reason)
}

func (e *ValueError) Unwrap() error {
	return ErrValue
}

func valueErr(value string, format string, args ...any) error {
	return &ValueError{Value: value, Reason: fmt.Sprintf(format, args...)}
}

// withPath fills in the path of a ValueError produced by a codec.
func withPath(err error, path string) error {
	var ve *ValueError
	if errors.As(err, &ve) && ve.Path == "" {
		cp := *ve
		cp.Path = path
		return &cp
	}
	return err
}
