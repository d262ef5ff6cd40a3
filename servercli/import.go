package servercli

import (
	"fmt"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/database"
	"github.com/hdt3213/pdis/lib/logger"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [rdb file]",
	Short: "Load the string keys of an RDB file into the configured store, the server must not be running",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Setup(configFile, nil); err != nil {
			return err
		}
		loaded, skipped, err := ImportRDB(config.Properties, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d keys, skipped %d keys of unsupported types\n", loaded, skipped)
		return nil
	},
	SilenceUsage: true,
}

// ImportRDB opens the store described by props and loads the RDB file at path into it
func ImportRDB(props *config.ServerProperties, path string) (loaded int, skipped int, err error) {
	db, err := database.OpenDB(props)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	loaded, skipped, err = db.LoadRDB(path)
	if err != nil {
		return loaded, skipped, fmt.Errorf("import %s: %w", path, err)
	}
	logger.Infof("imported %d keys from %s into %s", loaded, path, props.EngineDir())
	return loaded, skipped, nil
}

func init() {
	AddCommand(importCmd)
}
