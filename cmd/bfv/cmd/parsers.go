package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var parsersCmd = &cobra.Command{
	Use:   "parsers",
	Short: "List the discovered parser programs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _, _, err := setup()
		if err != nil {
			return err
		}
		defer cat.Close()

		programs := cat.Programs()
		if len(programs) == 0 {
			fmt.Println("no parser programs found")
			return nil
		}

		for _, program := range programs {
			nameColor.Print(program.Name)
			fmt.Printf("  %v", strings.Join(program.Extensions, " "))
			if program.HasSniff() {
				typeColor.Print("  [sniff]")
			}
			color.New(color.Faint).Printf("  %v", program.Path)
			fmt.Println()
		}
		return nil
	},
}
