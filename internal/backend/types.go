// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the local inference backend.
package backend

import (
	"github.com/jeranaias/loomchat/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// GenParams are the generation parameters forwarded on every request.
type GenParams struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

// GenerateRequest is the body of the streaming generation call.
type GenerateRequest struct {
	SessionID   string             `json:"sessionId"`
	Prompt      string             `json:"prompt"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
	Params      GenParams          `json:"params,omitempty"`
}

// backendError is the JSON error shape the backend returns on non-2xx.
type backendError struct {
	Error string `json:"error"`
}
