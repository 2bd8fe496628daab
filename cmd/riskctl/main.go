package main

import "github.com/glycowatch/backend/internal/cli"

func main() {
	cli.Execute()
}
