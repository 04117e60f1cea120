package main

import "github.com/clipgrab/tikrelay/cmd"

func main() {
	cmd.Execute()
}
