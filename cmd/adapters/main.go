// Command adapters lists the adapter artifacts found under ADAPTER_ROOT.
package main

import (
	"fmt"
	"os"

	"nexus-ai-be/internal/config"
	"nexus-ai-be/pkg/adapter"

	"github.com/fatih/color"
)

func main() {
	cfg := config.Load()

	root := cfg.Adapter.Root
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	color.Cyan("Scanning adapters in %s\n", root)

	descriptors, err := adapter.Scan(root)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	if len(descriptors) == 0 {
		color.Yellow("No adapters found")
		return
	}

	for _, d := range descriptors {
		color.Green("%s", d.ID())
		fmt.Printf("  path:       %s\n", d.Path)
		fmt.Printf("  base model: %s\n", valueOr(d.BaseModel, "-"))
		fmt.Printf("  size:       %d bytes\n", d.SizeBytes)
		fmt.Printf("  created:    %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
		if d.TrainLoss != nil {
			fmt.Printf("  train loss: %.4f\n", *d.TrainLoss)
		}
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
