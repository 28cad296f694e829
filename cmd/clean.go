package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/build"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	"github.com/tuatara-dev/korowai/internal/ui"
)

var cleanForce bool

func init() {
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "skip confirmation prompt")
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the build directory",
	Long: `Deletes the encrypted build tree produced by 'korowai build', including
its manifest. The source project is untouched.

Use --force to skip the confirmation prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting clean command")

		cfg, root, err := loadConfig()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to load configuration: %v", err)
		}

		builder, err := build.NewBuilder(root, cfg, auth.NewManager(cfg.Auth, nil, Logger), Logger)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to create builder: %v", err)
		}

		if !cleanForce {
			fmt.Printf("This will permanently delete the build directory under %s.\n", ui.Path.Sprint(root))
			if !confirmCleanAction() {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := builder.Clean(); err != nil {
			if errors.Is(err, kerrors.ErrBuildDirMissing) {
				fmt.Println(ui.Info.Sprint("→") + " Nothing to clean: no build directory exists.")
				return nil
			}
			return Logger.ErrorfAndReturn("failed to clean build directory: %v", err)
		}

		fmt.Println(ui.Success.Sprint("✓") + " Build directory removed")
		return nil
	},
}

// confirmCleanAction prompts the user to confirm the clean operation.
func confirmCleanAction() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Do you want to continue? [y/N]: ")
	response, err := reader.ReadString('\n')
	if err != nil {
		Logger.Errorf("Failed to read response: %v", err)
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
