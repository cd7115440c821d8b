package main

import "github.com/nerovaautomation/nerovaagent/cmd"

func main() {
	cmd.Execute()
}
