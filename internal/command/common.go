// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os"
	"os/exec"

	"github.com/urfave/cli/v3"

	"github.com/harina-30/ecrctl/internal/meta"
	"github.com/harina-30/ecrctl/internal/provision"
)

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr ecrctl <subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "ecrctl", subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// ProvisionConfig assembles the workflow configuration from the resolved
// flag values (explicit flag, env var or config file, in that order).
func ProvisionConfig(cmd *cli.Command) provision.Config {
	return provision.Config{
		AccountID:      cmd.String("account"),
		Region:         cmd.String("region"),
		Repository:     cmd.String("repo"),
		SourceRepo:     cmd.String("source-repo"),
		RoleName:       cmd.String("role"),
		CreateProvider: cmd.Bool("create-provider"),
		OutDir:         cmd.String("out-dir"),
	}
}
