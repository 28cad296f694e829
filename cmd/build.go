package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/build"
	"github.com/tuatara-dev/korowai/internal/ui"
)

var buildSkipEncrypt bool

func init() {
	buildCmd.Flags().BoolVar(&buildSkipEncrypt, "skip-encrypt", false, "copy the project and write the manifest without encrypting anything")
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Encrypt the project into a distributable build tree",
	Long: `Copies the project into the build directory, encrypts every discovered
source unit and model file in place, and writes the manifest the runtime
loaders consume. The build directory is recreated from scratch on every
run.

The encryption key comes from the license file (DEV mode) or from a
device-sealed license (PROD mode, requires KOROWAI_DEVICE_SECRET or a
hardware device).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting build command")

		cfg, root, err := loadConfig()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to load configuration: %v", err)
		}
		Logger.Debugf("Project root: %s", root)

		s, cleanup := startSpinner("Building encrypted project...")
		defer cleanup()

		keys := auth.NewManager(cfg.Auth, newDevice(), Logger)
		builder, err := build.NewBuilder(root, cfg, keys, Logger)
		if err != nil {
			s.FinalMSG = ui.Error.Sprint("✗") + " Project root not found"
			return Logger.ErrorfAndReturn("failed to create builder: %v", err)
		}

		report, err := builder.Build(build.Options{SkipEncrypt: buildSkipEncrypt})
		if err != nil {
			s.FinalMSG = ui.Error.Sprint("✗") + " Build failed"
			return Logger.ErrorfAndReturn("build failed: %v", err)
		}

		if buildSkipEncrypt {
			s.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Plaintext build %s written to %s (%d files)",
				ui.Highlight.Sprint(report.BuildID), ui.Path.Sprint(report.OutputDir), report.CopiedFiles)
			return nil
		}

		s.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Build %s: %d units and %d models encrypted into %s",
			ui.Highlight.Sprint(report.BuildID), report.EncryptedUnits, report.EncryptedModels, ui.Path.Sprint(report.OutputDir))
		if len(report.SkippedEncrypt) > 0 {
			s.FinalMSG += "\n" + ui.Info.Sprint("→") + fmt.Sprintf(" %d file(s) left unencrypted by configuration", len(report.SkippedEncrypt))
		}
		return nil
	},
}
