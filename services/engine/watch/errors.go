// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import "errors"

var (
	// ErrInvalidRoot indicates an empty or unusable watch root.
	ErrInvalidRoot = errors.New("watch root must not be empty")

	// ErrNilCallback indicates no change callback was provided.
	ErrNilCallback = errors.New("callback must not be nil")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")
)
