package main

import "github.com/user/complyscan/cmd"

func main() {
	cmd.Execute()
}
