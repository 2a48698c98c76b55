package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hearingdesk/speaker-attribution/configs"
	"github.com/hearingdesk/speaker-attribution/internal/app"
)

var (
	configFile   string
	verbose      bool
	logLevel     string
	outputFormat string
	outputFile   string
	dataDir      string
	sampleDir    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "speaker-attribution",
	Short: "Multi-signal speaker attribution for congressional hearing audio",
	Long: `Attributes transcript segments of congressional hearing audio to the
speakers on a hearing's candidate roster by fusing two independent signals:
acoustic similarity against trained per-speaker voice models and textual
cues in the transcript itself (direct address, procedural role phrases).

Key features:
- Voice feature extraction and per-speaker Gaussian mixture voice models
- Automated voice sample collection from external archive sources
- Transcript text pattern analysis against the hearing roster
- Confidence-laddered fusion of acoustic and textual evidence
- Correction-driven model retraining and threshold optimization`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/speaker-attribution/speaker-attribution.yaml)")

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"data directory (default is $HOME/.local/share/speaker-attribution)")

	rootCmd.PersistentFlags().StringVar(&sampleDir, "sample-dir", "",
		"voice sample directory (default is <data-dir>/samples)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format (json, yaml, table)")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "",
		"write results to file instead of stdout")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("sample_dir", rootCmd.PersistentFlags().Lookup("sample-dir"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "speaker-attribution"))
		viper.AddConfigPath("/etc/speaker-attribution")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("speaker-attribution")
		viper.SetConfigType("yaml")
	}

	// Environment variable support
	viper.SetEnvPrefix("SPEAKER_ATTR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configs.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		// Apply the viper config value to the flag when the flag is not set
		// and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				lastErr = err
			}
		}

		if err := v.BindPFlag(f.Name, f); err != nil {
			lastErr = err
		}

		if err := v.BindEnv(f.Name, "SPEAKER_ATTR_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// newAppContext builds the shared application context from global flags
func newAppContext() *app.Context {
	return &app.Context{
		ConfigFile:   configFile,
		DataDir:      dataDir,
		SampleDir:    sampleDir,
		OutputFile:   outputFile,
		OutputFormat: outputFormat,
		Verbose:      verbose,
		LogLevel:     logLevel,
	}
}

// appFromContext creates the application for one command invocation
func appFromContext(ctx *app.Context) (*app.App, error) {
	return app.NewApp(ctx)
}
