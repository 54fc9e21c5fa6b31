package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd has no default action of its own — "daemon" is the thing that
// actually runs the scheduler, kept as an explicit subcommand (rather than
// the root's Run) so "usched version"/"usched keygen" don't pay the cost of
// spinning up a config load first.
var rootCmd = &cobra.Command{
	Use:   "usched",
	Short: "usched - network-attached job scheduling daemon",
	Long:  "usched parses scheduling sentences, arms timed triggers, and dispatches fired entries to an executor over a local or remote connection.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: /etc/usched/usched.yaml)")
	cobra.OnInitialize(initViperConfig)

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keygenCmd)
}

// initViperConfig loads an optional config file and exports every key it
// finds as an environment variable, so config.Load's single env.Parse pass
// sees config-file values without internal/config needing to know viper
// exists. Priority ends up: real env vars (already set) > config file >
// struct defaults, since env.Parse never overwrites a variable it finds set
// from the shell, and os.Setenv here never overwrites ones set before it.
func initViperConfig() {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("usched")
		v.AddConfigPath("/etc/usched")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			fmt.Fprintf(os.Stderr, "usched: reading config %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
		// No config file found anywhere searched — env vars and struct
		// defaults are enough to run.
		return
	}

	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if _, set := os.LookupEnv(envKey); set {
			continue
		}
		os.Setenv(envKey, fmt.Sprintf("%v", v.Get(key)))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
