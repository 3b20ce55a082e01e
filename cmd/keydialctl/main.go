// Command keydialctl configures and inspects the keydiald driver: it edits
// the persisted configuration, talks to the running daemon's control socket,
// and runs host diagnostics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Triforcey/huion-keydial-mini-uinput/config"
	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
)

var (
	flagConfig string
	flagSocket string
)

var rootCmd = &cobra.Command{
	Use:           "keydialctl",
	Short:         "Configure the Huion Keydial Mini driver",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&flagSocket, "socket", "s", "", "control socket path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(flagConfig)
}

func saveConfig(cfg *config.Config) error {
	path := config.PreferredSavePath(flagConfig)
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Println("saved", path)
	return nil
}

// controlClient returns a client for the daemon's socket, resolving the path
// from the flag or the configuration.
func controlClient(cfg config.Config) *keybind.Client {
	path := flagSocket
	if path == "" {
		path = cfg.Control.SocketPath
	}
	if path == "" {
		path = config.DefaultSocketPath()
	}
	return keybind.NewClient(path)
}
