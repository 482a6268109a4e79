// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAgentNotFound indicates a handoff named an agent absent from the registry.
var ErrAgentNotFound = errors.New("agent not found in registry")

// ErrMaxHandoffs indicates a chain exceeded its handoff limit.
var ErrMaxHandoffs = errors.New("max handoffs exceeded")

// ErrRegistryLoad indicates the agent definitions directory is missing or empty.
var ErrRegistryLoad = errors.New("agent registry load failed")

// ErrApprovalDenied indicates a human rejected a gated action.
var ErrApprovalDenied = errors.New("approval denied")
