// Command posepipe runs the pose-estimation batch stages (detect, convert,
// merge, encode, skeleton) over a directory tree.
//
// Every stage command loads configuration from defaults, an optional config
// file, a dotenv file, POSEPIPE_* environment variables, and flags, then
// processes each discovered item independently and reports per-item
// outcomes.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/stage"
)

// commit is injected at build time via -ldflags.
var commit = "unknown"

// errItemsFailed is returned after a run in which at least one item
// failed. The summary has already been logged, so main only sets the exit
// status.
var errItemsFailed = errors.New("one or more items failed")

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errItemsFailed) {
			fmt.Fprintf(os.Stderr, "posepipe: %v\n", err)
			for _, h := range errors.GetAllHints(err) {
				fmt.Fprintf(os.Stderr, "hint: %s\n", h)
			}
		}
		return 1
	}
	return 0
}

// rootOptions are the sources consulted before flags.
type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "posepipe",
		Short:         "Batch orchestrator for pose-estimation video pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Config file (YAML or TOML)")
	pf.StringVar(&opts.envFile, "env-file", "", "Dotenv file (default: ./.env when present)")
	config.AddRunFlags(pf)

	for _, name := range stage.Names {
		root.AddCommand(newStageCmd(opts, name))
	}
	root.AddCommand(newCheckCmd(opts), newHistoryCmd(opts), newVersionCmd())
	return root
}

// loadConfig applies the optional positional source root and builds the
// validated configuration for cmd.
func loadConfig(cmd *cobra.Command, opts *rootOptions, args []string) (*config.Config, error) {
	if len(args) > 0 {
		if err := cmd.Flags().Set("source-root", args[0]); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: opts.configFile,
		EnvFile:    opts.envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "posepipe %s (%s)\n", config.Version(), commit)
		},
	}
}
