// Copyright 2026 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

// Command lmdbkv-verify is a small smoke-test driver: it opens an
// environment, runs a put/get/range/delete cycle against it, and reports
// pass/fail. It exists to give an operator a way to poke at a data
// directory from the command line, not as a general-purpose database
// client.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/mendersoftware/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/northerntech/lmdbkv/kv"
)

const appDescription = "" +
	"lmdbkv-verify opens an lmdbkv environment and exercises a basic " +
	"put/get/range/delete cycle against it, to confirm the data directory " +
	"is reachable and behaving as expected."

func main() {
	app := &cli.App{
		Name:        "lmdbkv-verify",
		Usage:       "smoke-test an lmdbkv environment",
		Description: appDescription,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "no-subdir", Usage: "environment is a single file, not a directory"},
			&cli.Int64Flag{Name: "map-size", Value: kv.DefaultMapSize, Usage: "memory map size in bytes"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			verifyCommand,
			dumpCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var verifyCommand = &cli.Command{
	Name:      "verify",
	Usage:     "run a put/get/range/delete cycle against PATH",
	ArgsUsage: "PATH",
	Action:    runVerify,
}

var dumpCommand = &cli.Command{
	Name:      "dump",
	Usage:     "print every key in the root database of PATH",
	ArgsUsage: "PATH",
	Action:    runDump,
}

func openEnv(c *cli.Context) (*kv.Env[[]byte], string, error) {
	path := c.Args().First()
	if path == "" {
		return nil, "", errors.New("missing PATH argument")
	}

	flags := kv.NewEnvFlags()
	if c.Bool("no-subdir") {
		flags = flags.Add(kv.NoSubdir)
	}

	env, err := kv.NewBuilder[[]byte](kv.BytesProxy{}).
		SetMapSize(c.Int64("map-size")).
		Open(path, flags.Build())
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open environment at %s", path)
	}
	return env, path, nil
}

func runVerify(c *cli.Context) error {
	env, path, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()

	dbi, err := env.OpenDbi(nil, kv.EmptyFlags)
	if err != nil {
		return errors.Wrap(err, "failed to open root database")
	}

	fixtures := map[string]string{
		"lmdbkv-verify/alpha": "1",
		"lmdbkv-verify/beta":  "2",
		"lmdbkv-verify/gamma": "3",
	}

	txn, err := env.TxnWrite()
	if err != nil {
		return errors.Wrap(err, "failed to begin write transaction")
	}
	for k, v := range fixtures {
		if _, err := dbi.Put(txn, []byte(k), []byte(v), kv.EmptyFlags); err != nil {
			txn.Abort()
			return errors.Wrapf(err, "failed to put %s", k)
		}
	}
	if err := txn.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit fixtures")
	}

	rtxn, err := env.TxnRead()
	if err != nil {
		return errors.Wrap(err, "failed to begin read transaction")
	}
	defer rtxn.Abort()

	for k, want := range fixtures {
		got, ok, err := dbi.Get(rtxn, []byte(k))
		if err != nil {
			return errors.Wrapf(err, "failed to get %s", k)
		}
		if !ok {
			return errors.Errorf("key %s missing after commit", k)
		}
		if string(got) != want {
			return errors.Errorf("key %s: got %q, want %q", k, got, want)
		}
	}

	it, err := dbi.Iterate(rtxn, kv.Prefix[[]byte]([]byte("lmdbkv-verify/")))
	if err != nil {
		return errors.Wrap(err, "failed to start range iteration")
	}
	defer it.Close()

	var seen int
	for {
		_, _, ok, err := it.Next()
		if err != nil {
			return errors.Wrap(err, "range iteration failed")
		}
		if !ok {
			break
		}
		seen++
	}
	if seen != len(fixtures) {
		return errors.Errorf("prefix range saw %d keys, want %d", seen, len(fixtures))
	}

	wtxn, err := env.TxnWrite()
	if err != nil {
		return errors.Wrap(err, "failed to begin cleanup transaction")
	}
	for k := range fixtures {
		if err := dbi.Delete(wtxn, []byte(k)); err != nil {
			wtxn.Abort()
			return errors.Wrapf(err, "failed to delete %s", k)
		}
	}
	if err := wtxn.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit cleanup")
	}

	fmt.Printf("lmdbkv-verify: OK (%s, %d keys round-tripped)\n", path, len(fixtures))
	return nil
}

func runDump(c *cli.Context) error {
	env, _, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()

	dbi, err := env.OpenDbi(nil, kv.EmptyFlags)
	if err != nil {
		return errors.Wrap(err, "failed to open root database")
	}

	txn, err := env.TxnRead()
	if err != nil {
		return errors.Wrap(err, "failed to begin read transaction")
	}
	defer txn.Abort()

	it, err := dbi.Iterate(txn, kv.All[[]byte]())
	if err != nil {
		return errors.Wrap(err, "failed to start range iteration")
	}
	defer it.Close()

	var keys []string
	for {
		k, _, ok, err := it.Next()
		if err != nil {
			return errors.Wrap(err, "range iteration failed")
		}
		if !ok {
			break
		}
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}
