package main

import "github.com/bryanchriswhite/WindowAccordion/cmd/accordion/commands"

func main() {
	commands.Execute()
}
