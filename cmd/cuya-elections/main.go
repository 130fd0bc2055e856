package main

import "github.com/pfrederiksen/cuya-elections/internal/cli"

func main() {
	cli.Execute()
}
