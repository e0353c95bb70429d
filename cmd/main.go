package main

import "itdash/cmd/commands"

func main() {
	commands.Execute()
}
