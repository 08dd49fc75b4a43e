package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lee20171010/binary-file-viewer/internal/catalog"
)

var checkCmd = &cobra.Command{
	Use:   "check <program>",
	Short: "Validate a parser program without decoding anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		program, err := catalog.LoadProgram(args[0])
		if err != nil {
			errColor.Println(err.Error())
			return err
		}

		fmt.Printf("%v: ok\n", args[0])
		fmt.Printf("  name: %v\n", program.Name)
		fmt.Printf("  extensions: %v\n", strings.Join(program.Extensions, " "))
		fmt.Printf("  root: %v\n", program.Root)
		if program.HasSniff() {
			fmt.Println("  sniff: yes")
		}
		return nil
	},
}
