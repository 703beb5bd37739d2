// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// PreconditionError reports configuration or credential problems detected
// before any remote call was attempted.
type PreconditionError struct {
	Missing []string
	Reason  string
}

func (e *PreconditionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required configuration: %s",
			strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// IsPrecondition reports whether err originated before any remote call.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// alreadyExists maps the provider's duplicate-resource error codes to the
// tolerated AlreadyExists outcome. Anything else is a fatal remote failure.
func alreadyExists(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "EntityAlreadyExists", "RepositoryAlreadyExistsException":
		return true
	}
	return false
}
