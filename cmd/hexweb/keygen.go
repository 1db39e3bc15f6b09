// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/enikki/hex-web/cmd/hexweb/cli"
	"github.com/enikki/hex-web/lib/registry"
)

func keygenCommand() *cli.Command {
	var force bool

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate a registry signing key pair",
		Description: "Writes a new ed25519 private key to the given path (mode 0600) and\n" +
			"the public key next to it with a .pub suffix. Point signing.key_file\n" +
			"at the private key to enable registry signing; distribute the .pub\n" +
			"file to whoever verifies.",
		Usage: "hexweb keygen [flags] <path>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.BoolVar(&force, "force", false, "overwrite an existing key file")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Generate the key pair used in the config",
				Command:     "hexweb keygen /etc/hexweb/signing-key",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("keygen takes exactly one path argument")
			}
			return runKeygen(args[0], force)
		},
	}
}

func runKeygen(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; pass --force to overwrite", path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	public, private, err := registry.GenerateSigningKey()
	if err != nil {
		return err
	}
	if err := registry.SaveSigningKey(path, public, private); err != nil {
		return err
	}

	fmt.Printf("private key: %s\n", path)
	fmt.Printf("public key:  %s.pub\n", path)
	return nil
}
