// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os/exec"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/harina-30/ecrctl/internal/config"
	"github.com/harina-30/ecrctl/internal/provision"
)

func init() {
	cfg, _ = config.Load("")
}

var (
	cfg config.Type

	tldrFlag *cli.BoolFlag = &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
)

// NewGlobalFlags returns the flags shared by every subcommand. params[0] is
// the command name used as the config namespace.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	flags = []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"color", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("color", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"output", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("output", altsrc.StringSourcer(cfg.Source)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"titles", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("titles", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
	}

	return
}

// NewAccountFlag constructs the target account id flag, namespaced to the
// command in the config file.
func NewAccountFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "account",
		Usage: "AWS account id the resources are provisioned in",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ECRCTL_ACCOUNT"),
			cli.EnvVar("AWS_ACCOUNT_ID"),
		),
		Validator: func(value string) error {
			return FlagValidators(value, JammedFlagValidator, AccountValidator)
		},
	})
}

// NewRegionFlag constructs the region flag.
func NewRegionFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "region",
		Usage: "AWS region of the registry",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ECRCTL_REGION"),
			cli.EnvVar("AWS_REGION"),
		),
	})
}

// NewRepoFlag constructs the target ECR repository name flag.
func NewRepoFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "repo",
		Usage: "ECR repository name (namespace/name form allowed)",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ECRCTL_REPO"),
		),
	})
}

// NewSourceRepoFlag constructs the GitHub source repository flag. Its value
// becomes the subject-claim condition of the trust policy.
func NewSourceRepoFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "source-repo",
		Usage: "GitHub repository (owner/name) whose workflows may assume the role",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ECRCTL_SOURCE_REPO"),
			cli.EnvVar("GITHUB_REPOSITORY"),
		),
		Validator: func(value string) error {
			return FlagValidators(value, JammedFlagValidator, SourceRepoValidator)
		},
	})
}

// NewRoleFlag constructs the role name flag.
func NewRoleFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "role",
		Usage: "IAM role name to create or reuse",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ECRCTL_ROLE"),
		),
		Value: provision.DefaultRoleName,
	})
}

// NewProfileFlag constructs the shared-config profile flag.
func NewProfileFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "profile",
		Usage: "AWS shared config profile. Overrides AWS_PROFILE",
	})
}

// NewOutDirFlag constructs the artifact output directory flag.
func NewOutDirFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "out-dir",
		Usage: "directory the policy documents are written to",
		Value: ".",
	})
}

// NameSpacedValueChainFlagFromConfigFile adds namespaced and global config
// file sources to the given flag's Sources chain.
func NameSpacedValueChainFlagFromConfigFile(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}

// pathHas checks if the given executable exists on PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
