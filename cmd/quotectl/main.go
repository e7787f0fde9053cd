package main

import "github.com/materialquote/backend/internal/cli"

func main() {
	cli.Execute()
}
