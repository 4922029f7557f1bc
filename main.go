package main

import "github.com/mkoopman/gridbak/cmd"

func main() {
	cmd.Execute()
}
