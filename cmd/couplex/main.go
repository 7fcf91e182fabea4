// couplex is a command line interface to the couplex modeling engine.
//
// It validates YAML model definitions and runs them end to end: expanding
// symbolic expressions into numeric problems, solving every (problem,
// scenario) unit and, in integrated mode, iterating coupling groups to a
// fixed point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couplex/couplex"
	"github.com/couplex/couplex/config"
	"github.com/couplex/couplex/model"
)

var rootCmd = &cobra.Command{
	Use:     "couplex",
	Short:   "expands and solves families of convex optimization problems",
	Version: buildString(),
}

var errNotFound = errors.New("file does not exist")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

func buildString() string {
	return "couplex v" + couplex.Version.String()
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// loadModel reads and validates a YAML model definition.
func loadModel(modelPath string) (*model.Model, error) {
	if !fileExists(modelPath) {
		return nil, errNotFound
	}
	return config.Load(modelPath)
}
