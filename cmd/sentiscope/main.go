package main

import (
	"os"

	"github.com/zhouzirui/sentiscope/backend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
