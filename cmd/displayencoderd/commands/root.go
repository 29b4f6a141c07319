package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "displayencoderd",
	Short: "Display capture and H.264 encoding daemon",
	Long: `displayencoderd captures a virtual display's framebuffer updates and
encodes them to H.264 for a downstream transport.

It owns exactly the capture-to-encode core: accepting dirty-region
partials, maintaining the packed-pixel screen buffer and the persistent
YUV working picture, and driving an x264 encoder through GStreamer.
Delivery of the resulting NAL stream to a client is out of scope.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults + SWEET_ env vars)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configFile() string {
	return cfgFile
}

func logLevelOverride() string {
	return logLevel
}
