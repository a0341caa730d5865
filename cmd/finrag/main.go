// Package main 财报问答命令行入口
package main

import (
	"os"

	"github.com/joho/godotenv"

	"fin-rag-api/internal/interfaces/cli"
)

func main() {
	_ = godotenv.Load()
	os.Exit(int(cli.Run()))
}
