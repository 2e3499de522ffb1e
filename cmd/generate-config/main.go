package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/quill/internal/config"
)

const header = "# Quill Configuration Example\n# Copy this file to config.yaml and customize as needed\n# S3 credentials are read from S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and S3_ENDPOINT\n\n"

func main() {
	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if outputFile == "-" {
		if err := writeExample(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
			os.Exit(1)
		}
		return
	}

	f, err := os.Create(outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := writeExample(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", outputFile)
}

// writeExample writes the default configuration as commented YAML.
func writeExample(w io.Writer) error {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(yamlData)
	return err
}
