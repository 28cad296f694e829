package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/config"
	logger "github.com/tuatara-dev/korowai/internal/logging"
	"github.com/tuatara-dev/korowai/internal/utils"
)

var (
	verbose    bool
	debug      bool
	configFile string
	Logger     logger.Logger

	RootCmd = &cobra.Command{
		Use:   "korowai",
		Short: "Korowai - transparent encryption for deployed source and model artifacts.",
		Long: `Korowai encrypts the source units and model files of a project into a
distributable build tree, and its runtime loaders decrypt them back into
memory on demand. Keys come from a license file in development or a
device-sealed license in production.

Run 'korowai help <command>' for details on a specific command.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing korowai with verbose=%t, debug=%t", verbose, debug)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to korowai.toml (default: discovered from the project root)")

	RootCmd.AddCommand(buildCmd)
	RootCmd.AddCommand(cleanCmd)
	RootCmd.AddCommand(packageCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(keygenCmd)
}

// loadConfig locates the project root and loads its configuration. An
// explicit --config path wins; otherwise korowai.toml is discovered by
// walking upward, falling back to the working directory with defaults.
func loadConfig() (*config.Config, string, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, "", err
		}
		root, err := filepath.Abs(filepath.Dir(configFile))
		if err != nil {
			return nil, "", err
		}
		return cfg, root, nil
	}

	root, err := utils.FindProjectRoot()
	if err != nil {
		return nil, "", err
	}
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return nil, "", err
		}
		Logger.Debugf("No korowai.toml found; using defaults in %s", root)
		cfg, err := config.Load("")
		return cfg, root, err
	}

	cfg, err := config.Load(filepath.Join(root, "korowai.toml"))
	return cfg, root, err
}

// newDevice returns the authorization device for CLI operations: a sealed
// device derived from KOROWAI_DEVICE_SECRET when provisioned, nil otherwise.
func newDevice() auth.Device {
	if secret := os.Getenv("KOROWAI_DEVICE_SECRET"); secret != "" {
		return auth.NewSealedDevice(secret)
	}
	return nil
}
