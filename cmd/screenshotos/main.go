package main

import "github.com/screenshotos/screenshotos/cmd/screenshotos/commands"

func main() {
	commands.Execute()
}
