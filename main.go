package main

import "github.com/orawipe/orawipe/cmd"

func main() {
	cmd.Execute()
}
