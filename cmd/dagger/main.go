// Package main provides the Dagger CLI application entry point.
// Dagger launches a browser-automation host and drops the operator into an
// interactive scripting console bound to the live driver.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dagger/internal/browser"
	"dagger/internal/console"
	"dagger/internal/logger"
	"dagger/internal/registry"
	"dagger/internal/version"
)

var (
	browserName string
	headless    bool
	scriptsDir  string
	logLevel    string
	logFile     string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dagger",
	Short: "Dagger - interactive scripting console for browser automation",
	Long: `Dagger launches a browser driver and activates an interactive debugging
console bound to it. The console inherits the driver and its helpers as live
variables, loads sibling helper scripts, and executes operator-typed code
against that shared state.`,
	Run: runConsole,
}

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&browserName, "browser", "b", "chrome", "Browser to launch (chrome|firefox)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Run the browser headless")
	rootCmd.PersistentFlags().StringVar(&scriptsDir, "scripts", "", "Directory of helper scripts to load before the session")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")

	for _, flag := range []string{"browser", "headless", "scripts", "log-level", "log-file"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	if err := logger.Configure(logLevel, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func runConsole(_ *cobra.Command, _ []string) {
	logger.Info("Starting Dagger", "version", version.GetVersion())

	name := viper.GetString("browser")
	if !knownBrowser(name) {
		fmt.Printf("Could not find the browser %s, running chrome.\n", name)
		name = "chrome"
	}

	driver, err := browser.Launch(name, browser.Options{Headless: headless})
	if err != nil {
		logger.Fatal("Failed to launch browser", "browser", name, "error", err)
	}
	defer func() { _ = driver.Close() }()

	registerDriverActions(driver)

	input, err := console.NewReadlineReader()
	if err != nil {
		logger.Fatal("Failed to initialize input", "error", err)
	}
	defer func() { _ = input.Close() }()

	globals := map[string]any{
		"driver":   driver,
		"browsers": browser.Available(),
	}

	if err := console.Activate(console.Options{
		Globals:   globals,
		ScriptDir: scriptsDir,
		Input:     input,
	}); err != nil {
		logger.Fatal("Console session failed", "error", err)
	}
}

// registerDriverActions publishes the driver convenience actions during the
// deterministic startup phase, before the console loop starts.
func registerDriverActions(driver *browser.Driver) {
	reg := registry.Global()
	reg.Register("screenshot", func() error {
		return driver.Screenshot("dagger.png")
	})
	reg.Register("url", func() error {
		fmt.Println(driver.URL())
		return nil
	})
	reg.Register("title", func() error {
		title, err := driver.Title()
		if err != nil {
			return err
		}
		fmt.Println(title)
		return nil
	})
}

func knownBrowser(name string) bool {
	for _, available := range browser.Available() {
		if name == available {
			return true
		}
	}
	return false
}
