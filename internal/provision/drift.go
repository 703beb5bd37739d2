// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"encoding/json"
	"fmt"
	"net/url"

	gojsondiff "github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// trustDrift compares the live trust document of a pre-existing role against
// the desired one and returns an ascii diff when they differ. The IAM API
// returns AssumeRolePolicyDocument URL-encoded.
func trustDrift(existingEncoded string, desired []byte) (string, error) {
	existing, err := url.QueryUnescape(existingEncoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode existing trust policy: %w", err)
	}

	differ := gojsondiff.New()
	diff, err := differ.Compare([]byte(existing), desired)
	if err != nil {
		return "", fmt.Errorf("failed to diff trust policies: %w", err)
	}
	if !diff.Modified() {
		return "", nil
	}

	var left map[string]interface{}
	if err := json.Unmarshal([]byte(existing), &left); err != nil {
		return "", fmt.Errorf("failed to unmarshal existing trust policy: %w", err)
	}

	f := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
	})
	return f.Format(diff)
}
