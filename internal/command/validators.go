// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harina-30/ecrctl/internal/policy"
)

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

// AccountValidator verifies a 12-digit AWS account id.
func AccountValidator(value any) error {
	s := value.(string)
	if len(s) != 12 {
		return errors.New("must be a 12-digit account id")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return errors.New("must be a 12-digit account id")
		}
	}
	return nil
}

// SourceRepoValidator verifies an owner/name GitHub repository reference.
func SourceRepoValidator(value any) error {
	if !policy.ValidSourceRepo(value.(string)) {
		return errors.New("must be an owner/name repository reference")
	}
	return nil
}

func OutputValidator(value any) error {
	var validOutputFlagValues = []string{"text", "json", "raw", "yaml"}
	valid := false
	for _, v := range validOutputFlagValues {
		if v == value {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("must be one of %v", validOutputFlagValues)
	}
	return nil
}
