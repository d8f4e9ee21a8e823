package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage topic sources",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <path-or-git-url>",
	Short: "Register a local directory or git repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.syncer.AddSource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printf(cmd, "%d\t%s\t%s\n", src.ID, src.Type, src.Path)
		return nil
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sources, err := a.db.GetAllSources(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range sources {
			scanned := "never"
			if s.LastScanned != nil {
				scanned = s.LastScanned.Local().Format("2006-01-02 15:04")
			}
			printf(cmd, "%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
		}
		return nil
	},
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a source and its topics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source ID %q", args[0])
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.db.DeleteSource(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("source %d not found", id)
		}
		printf(cmd, "Removed source %d.\n", id)
		return nil
	},
}

func init() {
	sourceCmd.AddCommand(sourceAddCmd, sourceListCmd, sourceRemoveCmd)
}
