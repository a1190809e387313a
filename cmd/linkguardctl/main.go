package main

import "github.com/mcoot/linkguard/internal/cli"

func main() {
	cli.Execute()
}
