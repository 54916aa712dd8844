package main

import "github.com/KaramelBytes/dqaudit-cli/cmd"

func main() {
	cmd.Execute()
}
