package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/detsql/detsql/pkg/cmd/serve"
	"github.com/detsql/detsql/pkg/log"
	"github.com/detsql/detsql/pkg/stress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// commandRoot is the root command used to route to sub-commands
	commandRoot string = "root"

	// CommandServe runs the HTTP service
	CommandServe string = "serve"

	// CommandStress runs the concurrent allocation scenario against a fresh allocator
	CommandStress string = "stress"
)

// Execute runs the root command for the application. If no command argument is provided on the
// command line, serve is executed.
func Execute(args []string) error {
	rootCmd := newRootCommand()

	// cobra doesn't provide a way within the API to set a default sub-command, so we prepend it
	// when it is omitted.
	if len(args) > 0 {
		pCmd, _, err := rootCmd.Find(args)
		if err != nil || pCmd.Use == rootCmd.Use {
			args = append([]string{CommandServe}, args...)
		}
	} else {
		args = []string{CommandServe}
	}
	rootCmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// newRootCommand creates a new root command which will act as a sub-command router.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          commandRoot,
		SilenceUsage: true,
	}

	// Add our persistent flags, these are global and available anywhere
	cmd.PersistentFlags().String("log-level", "info", "Set the log level")
	cmd.PersistentFlags().String("log-format", "pretty", "Set the log format - Can be either 'JSON' or 'pretty'")
	cmd.PersistentFlags().Bool("disable-log-color", false, "Disable coloring of log output")

	viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", cmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("disable-log-color", cmd.PersistentFlags().Lookup("disable-log-color"))

	// Setup viper to read from the env, this allows reading flags from the command line or the env
	// using the format 'LOG_LEVEL'
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cmd.AddCommand(
		newServeCommand(),
		newStressCommand(),
	)

	return cmd
}

func newServeCommand() *cobra.Command {
	opts := &serve.ServeOpts{}

	serveCmd := &cobra.Command{
		Use:   CommandServe,
		Short: "Serve the PoC log submission API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Init logging here so cobra/viper has processed the command line args and flags
			// otherwise only envvars are available during init
			log.InitLogging(true)
			return serve.Execute(cmd.Context(), opts)
		},
	}

	serveCmd.Flags().IntVar(&opts.Port, "port", 0, "Port to listen on, overrides API_PORT")

	return serveCmd
}

func newStressCommand() *cobra.Command {
	opts := stress.DefaultOptions()

	stressCmd := &cobra.Command{
		Use:   CommandStress,
		Short: "Run concurrent allocations against a fresh allocator and verify the results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.InitLogging(false)
			return runStress(cmd.Context(), opts)
		},
	}

	flags := stressCmd.Flags()
	flags.IntVar(&opts.Workers, "workers", opts.Workers, "Number of concurrent workers")
	flags.IntVar(&opts.Calls, "calls", opts.Calls, "Number of allocations")
	flags.Int64Var(&opts.InitialID, "initial-id", opts.InitialID, "First identifier to allocate")
	flags.StringVar(&opts.KeyPrefix, "key-prefix", opts.KeyPrefix, "Prefix of the generated keys")
	flags.IntVar(&opts.DistinctKeys, "distinct-keys", opts.DistinctKeys, "Number of distinct keys, at most calls")
	flags.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Maximum time for all allocations to complete")

	return stressCmd
}

func runStress(ctx context.Context, opts stress.Options) error {
	defer log.Profile(time.Now(), "stress")

	report, err := stress.Run(ctx, opts)
	if err != nil {
		return err
	}

	log.Infof("Completed %d/%d allocations on %d workers in %s: ids %d..%d, %d keys, %d records",
		report.Completed, report.Options.Calls, report.Options.Workers, report.Elapsed,
		report.MinID, report.MaxID, report.Keys, report.Records)

	violations := report.Violations()
	for _, v := range violations {
		log.Errorf("Violation: %s", v)
	}
	if len(violations) > 0 {
		return fmt.Errorf("stress run failed with %d violations", len(violations))
	}

	return nil
}
