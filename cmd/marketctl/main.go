package main

import "carmarket/cmd/marketctl/commands"

func main() {
	commands.Execute()
}
