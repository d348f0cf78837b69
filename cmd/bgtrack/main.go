package main

import "github.com/mcoot/boardgame-groups/internal/cli"

func main() {
	cli.Execute()
}
