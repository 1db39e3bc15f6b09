// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/enikki/hex-web/cmd/hexweb/cli"
	"github.com/enikki/hex-web/lib/codec"
	"github.com/enikki/hex-web/lib/objstore"
	"github.com/enikki/hex-web/lib/registry"
)

func verifyCommand() *cli.Command {
	var configPath string
	var keyPath string
	var dump bool

	return &cli.Command{
		Name:    "verify",
		Summary: "Check the published registry artifacts",
		Description: "Fetches every published artifact from the object store, decodes\n" +
			"it, and cross-checks the legacy table against the split listings.\n" +
			"With --key, checks the detached signature over the compressed\n" +
			"legacy blob. All problems are reported, not just the first.",
		Usage: "hexweb verify [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default $HEXWEB_CONFIG)")
			flagSet.StringVar(&keyPath, "key", "", "public key file to check the signature with")
			flagSet.BoolVar(&dump, "dump", false, "print each artifact in CBOR diagnostic notation")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Verify artifacts and the signature",
				Command:     "hexweb verify --key /etc/hexweb/signing-key.pub",
			},
			{
				Description: "Inspect the published listings",
				Command:     "hexweb verify --dump",
			},
		},
		Run: func(args []string) error {
			return runVerify(configPath, keyPath, dump)
		},
	}
}

func runVerify(configPath, keyPath string, dump bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	bucket, err := objstore.NewDir(cfg.Store.Directory)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	ctx := context.Background()
	var problems []error

	// Legacy table.
	compressed, err := bucket.Get(ctx, registry.KeyRegistry)
	if err != nil {
		return fmt.Errorf("%s: %w", registry.KeyRegistry, err)
	}
	tableData, err := registry.Decompress(compressed)
	if err != nil {
		return fmt.Errorf("%s: %w", registry.KeyRegistry, err)
	}
	table, err := registry.DecodeTable(tableData)
	if err != nil {
		return fmt.Errorf("%s: %w", registry.KeyRegistry, err)
	}
	fmt.Printf("%s: format version %d, %d entries, blake3 %s\n",
		registry.KeyRegistry, table.Version(), table.EntryCount(),
		registry.ArtifactDigest(compressed))
	if dump {
		dumpArtifact(registry.KeyRegistry, tableData)
	}

	// Detached signature.
	signature, signatureErr := bucket.Get(ctx, registry.KeySignature)
	switch {
	case keyPath != "":
		if signatureErr != nil {
			return fmt.Errorf("%s: %w", registry.KeySignature, signatureErr)
		}
		publicKey, err := registry.LoadVerifyKey(keyPath)
		if err != nil {
			return err
		}
		if !registry.Verify(publicKey, compressed, signature) {
			problems = append(problems, fmt.Errorf("%s: signature does not verify over %s",
				registry.KeySignature, registry.KeyRegistry))
		} else {
			fmt.Printf("%s: signature verifies\n", registry.KeySignature)
		}
	case signatureErr == nil:
		fmt.Printf("%s: present, not checked (pass --key)\n", registry.KeySignature)
	case errors.Is(signatureErr, objstore.ErrNotExist):
		fmt.Printf("%s: not published (signing disabled)\n", registry.KeySignature)
	default:
		return fmt.Errorf("%s: %w", registry.KeySignature, signatureErr)
	}

	// Split listings.
	names, err := fetchNames(ctx, bucket, dump)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d packages\n", registry.KeyNames, len(names))

	versions, err := fetchVersions(ctx, bucket, dump)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d packages\n", registry.KeyVersions, len(versions))

	if len(names) != len(versions) {
		problems = append(problems, fmt.Errorf("names lists %d packages, versions lists %d",
			len(names), len(versions)))
	}

	// Per-package listings, cross-checked against both split versions
	// and the legacy table.
	versionsByName := make(map[string][]string, len(versions))
	for _, record := range versions {
		versionsByName[record.Name] = record.Versions
	}

	releaseTotal := 0
	for _, record := range names {
		releases, err := fetchPackage(ctx, bucket, record.Name, dump)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		releaseTotal += len(releases)

		listed := make([]string, len(releases))
		for i, release := range releases {
			listed[i] = release.Version
		}

		if want, ok := versionsByName[record.Name]; !ok {
			problems = append(problems, fmt.Errorf("%s: missing from versions listing", record.Name))
		} else if !slices.Equal(listed, want) {
			problems = append(problems, fmt.Errorf("%s: package listing has versions %v, versions listing has %v",
				record.Name, listed, want))
		}

		if tableVersions := table.Versions(record.Name); !slices.Equal(listed, tableVersions) {
			problems = append(problems, fmt.Errorf("%s: package listing has versions %v, legacy table has %v",
				record.Name, listed, tableVersions))
		}
	}
	fmt.Printf("packages/*: %d listings, %d releases\n", len(names), releaseTotal)

	if len(problems) > 0 {
		return errors.Join(problems...)
	}
	fmt.Println("ok")
	return nil
}

func fetchNames(ctx context.Context, bucket objstore.Bucket, dump bool) ([]registry.NameRecord, error) {
	data, err := fetchArtifact(ctx, bucket, registry.KeyNames, dump)
	if err != nil {
		return nil, err
	}
	names, err := registry.DecodeNames(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", registry.KeyNames, err)
	}
	return names, nil
}

func fetchVersions(ctx context.Context, bucket objstore.Bucket, dump bool) ([]registry.VersionsRecord, error) {
	data, err := fetchArtifact(ctx, bucket, registry.KeyVersions, dump)
	if err != nil {
		return nil, err
	}
	versions, err := registry.DecodeVersions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", registry.KeyVersions, err)
	}
	return versions, nil
}

func fetchPackage(ctx context.Context, bucket objstore.Bucket, name string, dump bool) ([]registry.ReleaseRecord, error) {
	key := registry.PackageKey(name)
	data, err := fetchArtifact(ctx, bucket, key, dump)
	if err != nil {
		return nil, err
	}
	releases, err := registry.DecodePackage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return releases, nil
}

// fetchArtifact gets and decompresses one published object.
func fetchArtifact(ctx context.Context, bucket objstore.Bucket, key string, dump bool) ([]byte, error) {
	compressed, err := bucket.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	data, err := registry.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if dump {
		dumpArtifact(key, data)
	}
	return data, nil
}

// dumpArtifact prints an artifact's decompressed payload in CBOR
// diagnostic notation. Payloads that fail to parse print the error
// in place; the caller's decode step reports it properly.
func dumpArtifact(key string, data []byte) {
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		diagnostic = fmt.Sprintf("(not diagnosable: %v)", err)
	}
	fmt.Printf("--- %s\n%s\n", key, diagnostic)
}
