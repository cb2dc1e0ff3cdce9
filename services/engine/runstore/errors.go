// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runstore

import "errors"

var (
	// ErrNotFound indicates no report exists for the run ID.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidReport indicates a nil report or one without a run ID.
	ErrInvalidReport = errors.New("report must have a run ID")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")
)
