// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/driver/columnar"
	_ "github.com/columnar-sdk/columnar-go/engine/sqlite"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == outputJSON {
			errObj := map[string]any{"error": err.Error()}
			if status, ok := sdk.StatusOf(err); ok {
				errObj["status"] = status.String()
			}
			_ = json.NewEncoder(os.Stdout).Encode(errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// globals are the settings shared by every subcommand.
type globals struct {
	uri          string
	username     string
	password     string
	profile      string
	profilesFile string
	output       string
	logLevel     string

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	g := &globals{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:           "columnarq",
		Short:         "Columnar query CLI",
		Long:          "Command-line interface running queries through the Columnar Go SDK.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Apply precedence: flag > env > default
			if !cmd.Flags().Changed("uri") {
				if v := os.Getenv("COLUMNAR_URI"); v != "" {
					g.uri = v
				}
			}
			if !cmd.Flags().Changed("username") {
				if v := os.Getenv("COLUMNAR_USERNAME"); v != "" {
					g.username = v
				}
			}
			if !cmd.Flags().Changed("password") {
				if v := os.Getenv("COLUMNAR_PASSWORD"); v != "" {
					g.password = v
				}
			}
			return validateOutputFormat(g.output)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.uri, "uri", "sqlite://", "Connection string of the cluster")
	flags.StringVarP(&g.username, "username", "u", "", "Username")
	flags.StringVar(&g.password, "password", "", "Password")
	flags.StringVarP(&g.profile, "profile", "p", "", "Configuration profile to apply")
	flags.StringVar(&g.profilesFile, "profiles-file", "", "YAML file of configuration profiles")
	flags.StringVarP(&g.output, "output", "o", outputTable, "Output format (table, json, arrow)")
	flags.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newQueryCmd(g))
	rootCmd.AddCommand(newEnginesCmd(g))
	rootCmd.AddCommand(newVersionCmd(g))
	return rootCmd
}

func (g *globals) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", g.logLevel, err)
	}
	return slog.New(slog.NewTextHandler(g.errOut, &slog.HandlerOptions{Level: level})), nil
}

// driver returns a driver with the profiles of --profiles-file loaded.
func (g *globals) driver() (*columnar.Driver, error) {
	d := columnar.NewDriver(nil)
	if g.profilesFile == "" {
		return d, nil
	}
	f, err := os.Open(g.profilesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := d.Profiles().LoadYAML(f); err != nil {
		return nil, err
	}
	return d, nil
}

func (g *globals) clusterOptions() ([]columnar.ClusterOption, error) {
	logger, err := g.logger()
	if err != nil {
		return nil, err
	}
	opts := []columnar.ClusterOption{columnar.WithLogger(logger)}
	if g.profile != "" {
		opts = append(opts, columnar.WithProfile(g.profile))
	}
	return opts, nil
}

func newEnginesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the connection string schemes with a registered engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engines := sdk.Engines()
			if g.output == outputJSON {
				return json.NewEncoder(g.out).Encode(engines)
			}
			_, err := fmt.Fprintln(g.out, strings.Join(engines, "\n"))
			return err
		},
	}
}

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the driver version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := g.driver()
			if err != nil {
				return err
			}
			return printInfo(g, d.Info())
		},
	}
}
