package main

import "github.com/mcpmanager/mcpmanager/cmd"

func main() {
	cmd.Execute()
}
