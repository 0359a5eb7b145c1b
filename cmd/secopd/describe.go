package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SampleEnvironment/secop-go/pkg/config"
	"github.com/SampleEnvironment/secop-go/pkg/secop"
)

var flagDescribeConfig string

var describeCmd = &cobra.Command{
	Use:   "describe --config <file>",
	Short: "Load a node/module definition and print its descriptive JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagDescribeConfig)
		if err != nil {
			return err
		}

		lib := secop.New()
		ids, err := lib.LoadConfig(cfg)
		if err != nil {
			return err
		}

		for _, id := range ids {
			doc, err := lib.Describe(id)
			if err != nil {
				return fmt.Errorf("describe node %q: %w", id, err)
			}
			fmt.Println(string(doc))
		}
		return nil
	},
}

func init() {
	describeCmd.Flags().StringVar(&flagDescribeConfig, "config", "", "path to the node/module YAML definition")
	_ = describeCmd.MarkFlagRequired("config")
}
