package main

import "dzactions/cmd"

func main() {
	cmd.Execute()
}
