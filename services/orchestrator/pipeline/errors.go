// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "errors"

// Sentinel errors for the failure modes that terminate a run. Provider
// failures carry status and body via llm.APIError; everything below is a
// classification the handler maps to a terminal error frame.
var (
	// ErrSearchKeyMissing means web search was requested but the search
	// provider credential is not configured. Distinct from the completion
	// provider having no credential at all.
	ErrSearchKeyMissing = errors.New("search provider API key not configured")

	// ErrCompletionKeyMissing means no completion provider is configured.
	ErrCompletionKeyMissing = errors.New("completion provider API key not configured")

	// ErrStreamBroken means the provider stream failed repeatedly with no
	// successfully processed fragment in between.
	ErrStreamBroken = errors.New("provider stream broken: too many consecutive chunk failures")

	// ErrEmptyStream means the streaming path received no response body.
	ErrEmptyStream = errors.New("no response body available for streaming")
)
