package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-civitai-scrape/internal/api"
	"go-civitai-scrape/internal/config"
	"go-civitai-scrape/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// apiTimeoutFlag holds the value of the --api-timeout flag
var apiTimeoutFlag int

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the globally configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "civitai-scrape",
	Short: "A tool to scrape model metadata from Civitai",
	Long: `Civitai Scrape turns a list of model page links into a JSON registry
of model metadata with local thumbnails, using the Civitai API with an
optional raw-page fallback.`,
	PersistentPreRunE: loadGlobalConfig, // Load config before any command runs
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Defer closing the API logging transport if it was initialized
	defer func() {
		if loggingTransport, ok := globalHttpTransport.(*api.LoggingTransport); ok && loggingTransport != nil {
			if err := loggingTransport.Close(); err != nil {
				log.WithError(err).Error("Error closing API log file")
			}
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for API HTTP client in seconds (overrides config, -1 uses config default)")
}

// loadGlobalConfig attempts to load the configuration and applies flag overrides.
// It also sets up the global HTTP transport based on logging settings.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		// Not fatal here; commands check the fields they need from
		// globalConfig and fail later if something required is missing.
		log.WithError(err).Warnf("Failed to load configuration from %s", cfgFile)
	}

	if cmd.Flags().Changed("log-api") {
		globalConfig.LogApiRequests = logApiFlag
	}

	if cmd.Flags().Changed("api-timeout") {
		if apiTimeoutFlag > 0 {
			globalConfig.ApiClientTimeoutSec = apiTimeoutFlag
		} else {
			log.Warnf("--api-timeout flag provided with invalid value %d, using config value: %d sec", apiTimeoutFlag, globalConfig.ApiClientTimeoutSec)
		}
	}
	if globalConfig.ApiClientTimeoutSec <= 0 {
		globalConfig.ApiClientTimeoutSec = 60
	}
	if globalConfig.ThumbTimeoutSec <= 0 {
		globalConfig.ThumbTimeoutSec = 30
	}

	// --- Setup Global HTTP Transport ---
	baseTransport := http.DefaultTransport
	globalHttpTransport = baseTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		if globalConfig.OutputPath != "" {
			if dir := filepath.Dir(globalConfig.OutputPath); dir != "." {
				if _, statErr := os.Stat(dir); statErr == nil {
					logFilePath = filepath.Join(dir, logFilePath)
				}
			}
		}
		log.Infof("API logging to file: %s", logFilePath)

		loggingTransport, err := api.NewLoggingTransport(baseTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			globalHttpTransport = loggingTransport
		}
	}

	return nil
}
