package main

import "github.com/pantrysnap/pantrysnap/cmd/pantrysnap/cmd"

func main() {
	cmd.Execute()
}
