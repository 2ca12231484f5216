// Command key-generator is the entrypoint §6's CLI surface names for the
// prover's universal-setup/verification-key ceremony. Generating the
// actual proving/verification keys is proof-system internals (Non-goals);
// this command validates the ceremony's inputs and reports where the
// generated artifacts would be written, so the rest of the system (the
// prover service's --vk-path, the settlement contract's deployed
// verifier) has a stable flag surface to target once that ceremony is
// implemented.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var (
		circuitDir string
		outputDir  string
	)
	root := &cobra.Command{
		Use:   "key-generator",
		Short: "generate the prover's universal setup and verification keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(circuitDir, outputDir)
		},
	}
	root.Flags().StringVar(&circuitDir, "circuit-dir", "", "directory containing the compiled circuit description")
	root.Flags().StringVar(&outputDir, "output-dir", "keys", "directory the generated proving/verification keys are written to")
	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("key-generator exited with error")
		os.Exit(1)
	}
}

func run(circuitDir, outputDir string) error {
	if circuitDir == "" {
		return fmt.Errorf("key-generator: --circuit-dir is required")
	}
	if _, err := os.Stat(circuitDir); err != nil {
		return fmt.Errorf("key-generator: circuit dir: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("key-generator: output dir: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"circuitDir": circuitDir,
		"outputDir":  outputDir,
	}).Warn("key-generator: ceremony not implemented; proving/verification key generation is out of scope")
	return nil
}
