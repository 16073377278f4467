package main

import (
	"os"

	hashartcmder "github.com/Niederb/hash-art/cmd/hashart"
)

func main() {
	cmd := hashartcmder.NewHashartCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
