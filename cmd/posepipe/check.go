package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/backmassage/posepipe/internal/check"
	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/display"
	"github.com/backmassage/posepipe/internal/logging"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check tools, stage files, and host resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			log, err := logging.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			display.PrintBanner(os.Stdout, config.Version())
			return check.RunCheck(cmd.Context(), cfg, log)
		},
	}
}
