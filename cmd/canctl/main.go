package main

import "github.com/notnil/canclient/cmd"

func main() {
	cmd.Execute()
}
