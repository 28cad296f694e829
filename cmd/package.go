package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/build"
	"github.com/tuatara-dev/korowai/internal/ui"
)

var packageOutput string

func init() {
	packageCmd.Flags().StringVarP(&packageOutput, "output", "o", "", "archive path (default: <build_dir>.zip)")
}

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Archive the build directory into a single zip",
	Long: `Packages an existing build tree into one distributable archive. Encrypted
artifacts are stored without compression; everything else is deflated.

Run 'korowai build' first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting package command")

		cfg, root, err := loadConfig()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to load configuration: %v", err)
		}

		s, cleanup := startSpinner("Packaging build...")
		defer cleanup()

		builder, err := build.NewBuilder(root, cfg, auth.NewManager(cfg.Auth, nil, Logger), Logger)
		if err != nil {
			s.FinalMSG = ui.Error.Sprint("✗") + " Project root not found"
			return Logger.ErrorfAndReturn("failed to create builder: %v", err)
		}

		archive, err := builder.Package(packageOutput)
		if err != nil {
			s.FinalMSG = ui.Error.Sprint("✗") + " Packaging failed"
			return Logger.ErrorfAndReturn("failed to package build: %v", err)
		}

		s.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Build packaged into %s", ui.Path.Sprint(archive))
		return nil
	},
}
