package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/katlego-io/ussdflow/pkg/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate flow documents in a directory",
	Long: `Parses every .yaml/.yml/.json flow document under the directory and
reports schema and graph violations without starting the engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read directory: %w", err)
		}

		checked, failed := 0, 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			checked++
			if ext == ".json" {
				_, err = schema.ParseJSON(data)
			} else {
				_, err = schema.ParseYAML(data)
			}
			if err != nil {
				failed++
				fmt.Printf("FAIL %s\n  %v\n", path, err)
				continue
			}
			fmt.Printf("OK   %s\n", path)
		}

		if checked == 0 {
			return fmt.Errorf("no flow documents found in %s", dir)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d flow documents invalid", failed, checked)
		}
		fmt.Printf("%d flow documents valid\n", checked)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("dir", "d", ".", "Directory containing flow documents")
}
