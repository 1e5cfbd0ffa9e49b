// Command swapengine is the operator CLI for quoting and executing swaps with
// the server wallet.
package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
