package main

import "github.com/eslsoft/deeplisten/cmd"

func main() {
	cmd.Execute()
}
