package main

import "github.com/Elhashino/amazon-deals/internal/cli"

func main() {
	cli.Execute()
}
