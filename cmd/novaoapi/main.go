package main

import "github.com/dwnilii/novao/cmd/novaoapi/cmd"

func main() {
	cmd.Execute()
}
