package main

import "github.com/Dan9191/card-service/internal/cli"

func main() {
	cli.Execute()
}
