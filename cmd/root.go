// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FreddyVRetro/etherdfs-go/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// RedirectorConfig is populated by viper on cobra.OnInitialize, mirroring
	// how gcsfuse's root command surfaces its unmarshalled MountConfig.
	RedirectorConfig cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "etherdfsd [flags]",
	Short: "Install or remove the EtherDFS network-drive redirector",
	Long: `etherdfsd installs a redirector that maps local drive letters to
          remote drive letters hosted by an EtherDFS peer, transporting
          filesystem operations over raw Ethernet frames.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.ValidateConfig(&RedirectorConfig); err != nil {
			return err
		}
		return runRedirector(&RedirectorConfig)
	},
}

// Execute runs the root command; it is the sole entry point main.go calls.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(cfg.DecodeHook()))

	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&RedirectorConfig, decodeHook)
		return
	}

	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&RedirectorConfig, decodeHook)
}
