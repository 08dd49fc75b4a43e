package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Lee20171010/binary-file-viewer/internal/catalog"
	"github.com/Lee20171010/binary-file-viewer/internal/diagnostics"
	"github.com/Lee20171010/binary-file-viewer/internal/reader"
	"github.com/Lee20171010/binary-file-viewer/internal/sandbox"
)

var decodeJSON bool

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a binary file with the matching parser program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _, log, err := setup()
		if err != nil {
			return err
		}
		defer cat.Close()

		return decodeOnce(cmd.Context(), cat, sandbox.New(log), args[0])
	},
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false,
		"print the decode tree as JSON")
}

func decodeOnce(ctx context.Context, cat *catalog.Catalog,
	sb *sandbox.Sandbox, filePath string) error {

	program, err := cat.SelectParser(filePath)
	if err != nil {
		printSelectionFailure(cat, err)
		return err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	tree, failure := sb.Execute(ctx, program, filePath, data)
	if failure != nil {
		printFailure(failure)
		return failure
	}

	if decodeJSON {
		serialized, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(serialized))
		return nil
	}

	color.New(color.Faint).Printf("%v (%v)\n", filePath, program.Name)
	printField(tree.Root, 0)
	return nil
}

var (
	nameColor  = color.New(color.FgCyan)
	typeColor  = color.New(color.FgYellow)
	rangeColor = color.New(color.Faint)
	errColor   = color.New(color.FgRed, color.Bold)
)

func printField(field *sandbox.Field, depth int) {
	indent := strings.Repeat("  ", depth)

	fmt.Print(indent)
	nameColor.Print(field.Name)
	if field.Type != "" {
		fmt.Print(" ")
		typeColor.Printf("%v", field.Type)
	}
	rangeColor.Printf(" [%d..%d)", field.Start, field.End)

	if field.Children == nil {
		fmt.Printf(" = %v", formatValue(field.Value))
	}
	fmt.Println()

	for _, child := range field.Children {
		printField(child, depth+1)
	}
}

func formatValue(value interface{}) string {
	if value == nil {
		return "null"
	}
	if precise, ok := value.(reader.PreciseInteger); ok {
		return fmt.Sprintf("%v (%v)", precise.String(), precise.Hex())
	}
	return fmt.Sprintf("%v", value)
}

func printFailure(failure *sandbox.Failure) {
	diagnostic, ok := diagnostics.Translate(failure)
	if !ok {
		return
	}

	errColor.Fprintf(os.Stderr, "%v:%d: ", diagnostic.Path, diagnostic.Line)
	fmt.Fprintln(os.Stderr, diagnostic.Message)
}

func printSelectionFailure(cat *catalog.Catalog, err error) {
	errColor.Fprintln(os.Stderr, err.Error())
	for _, tested := range cat.TestedParserFilePaths() {
		fmt.Fprintf(os.Stderr, "  tested: %v\n", tested)
	}
}
