package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/config"
	"github.com/tuatara-dev/korowai/internal/loader"
	"github.com/tuatara-dev/korowai/internal/registry"
	"github.com/tuatara-dev/korowai/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project, key, and build status",
	Long: `Reports the configuration in effect, whether an encryption key can be
resolved, and what the current build contains. Key material itself is
never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting status command")

		cfg, root, err := loadConfig()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to load configuration: %v", err)
		}

		fmt.Println()
		figure.NewColorFigure("Korowai", "alligator2", "green", true).Print()
		fmt.Println()

		fmt.Printf("Project root:  %s\n", ui.Path.Sprint(root))
		fmt.Printf("Mode:          %s\n", ui.Highlight.Sprint(cfg.Auth.Mode))
		fmt.Printf("IV policy:     %s\n", cfg.Encryption.IVPolicy)
		fmt.Printf("Threshold:     %d bytes\n", cfg.Encryption.ThresholdBytes)
		fmt.Println()

		printKeyStatus(cfg)
		fmt.Println()
		printBuildStatus(cfg, root)
		return nil
	},
}

func printKeyStatus(cfg *config.Config) {
	keys := auth.NewManager(cfg.Auth, newDevice(), Logger)

	if _, err := keys.ResolveKey(); err != nil {
		if auth.IsNoSource(err) {
			fmt.Println(ui.Warning.Sprint("!") + " No key source available")
			if cfg.Auth.Mode == config.ModeDev && !cfg.Auth.Strict {
				fmt.Println(ui.Info.Sprint("→") + " The runtime would degrade to pass-through mode")
			} else {
				fmt.Println(ui.Error.Sprint("✗") + " The runtime would fail to initialize")
			}
		} else {
			fmt.Println(ui.Error.Sprint("✗") + " Key resolution failed: " + err.Error())
		}
		return
	}

	info := keys.Info()
	fmt.Printf("%s Key resolved from %s (%d bytes)\n", ui.Success.Sprint("✓"), info.KeySource, info.KeyLength)
	if info.DeviceAvailable {
		fmt.Println(ui.Info.Sprint("→") + " Authorization device available")
	}
}

func printBuildStatus(cfg *config.Config, root string) {
	buildDir := cfg.Build.BuildDir
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(root, buildDir)
	}

	m, err := registry.LoadManifest(filepath.Join(buildDir, registry.ManifestName))
	if err != nil {
		fmt.Println(ui.Info.Sprint("→") + " No build found. Run " + ui.Code.Sprint("korowai build") + " to create one.")
		return
	}

	fmt.Printf("%s Build %s in %s\n", ui.Success.Sprint("✓"), ui.Highlight.Sprint(m.Metadata.BuildID), ui.Path.Sprint(buildDir))
	fmt.Printf("  Units:   %d\n", len(m.Modules))
	fmt.Printf("  Models:  %d\n", len(m.Models))
	if m.Metadata.CreatedAt != "" {
		fmt.Printf("  Created: %s\n", m.Metadata.CreatedAt)
	}

	// Verify the build actually initializes under the current config.
	runtimeCfg := *cfg
	runtimeCfg.Build.BuildDir = buildDir
	system := loader.New(&runtimeCfg, newDevice(), Logger)
	if err := system.Initialize(loader.InitOptions{}); err != nil {
		fmt.Println(ui.Error.Sprint("✗") + " Runtime initialization would fail: " + err.Error())
		return
	}
	defer system.Shutdown()

	status := system.Status()
	if status.Degraded {
		fmt.Println(ui.Warning.Sprint("!") + " Runtime initializes in pass-through mode")
		return
	}
	fmt.Printf("%s Runtime initializes cleanly (%d artifacts registered)\n", ui.Success.Sprint("✓"), status.Registered)
}
