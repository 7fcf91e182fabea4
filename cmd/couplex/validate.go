package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:     "validate [model.yaml]",
	Short:   "checks a model definition and prints its structure",
	Run:     cmdValidate,
	Version: buildString(),
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func cmdValidate(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		fmt.Println("missing model path -- couplex validate -h for help")
		os.Exit(-1)
	}
	modelPath := filepath.Clean(args[0])

	m, err := loadModel(modelPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}

	fmt.Printf("%-30s %-30s %-d problems\n", "loaded model", modelPath, len(m.Problems()))
	fmt.Printf("%-30s %-d\n", "sets", len(m.Sets()))
	fmt.Printf("%-30s %-d\n", "data tables", len(m.Tables()))
	fmt.Printf("%-30s %-d\n", "variables", len(m.Variables()))
	fmt.Printf("%-30s %-d\n", "scenarios", len(m.Scenarios()))
	fmt.Printf("%-30s %-d\n", "coupling groups", len(m.CouplingGroups()))
	for _, p := range m.Problems() {
		kind := "uncoupled"
		if p.Group() != "" {
			kind = "group " + p.Group()
		}
		fmt.Printf("%-30s %-30s %-d expressions (%s)\n", "problem", p.Name(), len(p.Expressions()), kind)
	}
	fmt.Printf("%-30s %x\n", "fingerprint", m.Fingerprint())
}
