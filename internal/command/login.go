// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/harina-30/ecrctl/internal/aws"
	"github.com/harina-30/ecrctl/internal/meta"
	"github.com/harina-30/ecrctl/internal/output"
	"github.com/harina-30/ecrctl/internal/provision"
	"github.com/harina-30/ecrctl/internal/tokencache"
)

func LoginCommandAction(ctx context.Context, cmd *cli.Command) error {
	meta := GetMeta(cmd)
	log.Debugf("Executing action for %v", meta.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "login") {
		return nil
	}

	// Expired tokens are useless; clean them out on the way in.
	if err := tokencache.Purge(); err != nil {
		log.WithError(err).Warn("failed to purge token cache")
	}

	cacheKey := fmt.Sprintf("%s|%s|%s",
		cmd.String("profile"), cmd.String("region"), cmd.String("account"))

	auth, hit := tokencache.Read(cacheKey)
	if hit && !cmd.Bool("no-cache") {
		log.Debugf("using cached token for %s", auth.Endpoint)
	} else {
		awscfg, err := aws.LoadAWSConfig(ctx,
			aws.WithRegion(cmd.String("region")),
			aws.WithProfile(cmd.String("profile")))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}

		auth, err = provision.RegistryLogin(ctx, aws.NewECR(awscfg))
		if err != nil {
			return err
		}

		if err := tokencache.Write(cacheKey, auth); err != nil {
			log.WithError(err).Warn("failed to cache token")
		}
	}

	// The password goes to stdout so it can be piped into
	// `docker login --username AWS --password-stdin <endpoint>`.
	if cmd.String("output") == "text" {
		fmt.Fprintf(os.Stderr, "registry: %s (token expires %s)\n",
			auth.Endpoint, auth.ExpiresAt.Format("15:04 MST"))
		fmt.Println(auth.Password)
		return nil
	}

	return output.Spit(auth, cmd, os.Stdout)
}

func LoginCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "print docker-login credentials for the registry",
		UsageText: `ecrctl login [@set] [options] | docker login --username AWS --password-stdin <registry>`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewAccountFlag("login"),
			NewRegionFlag("login"),
			NewProfileFlag("login"),
			&cli.BoolFlag{
				Name:        "no-cache",
				Usage:       "always fetch a fresh token",
				HideDefault: true,
			},
			tldrFlag,
		}, NewGlobalFlags("login")...),
		Action: LoginCommandAction,
	}
}
