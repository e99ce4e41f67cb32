package main

import "github.com/azahar-emu/titlecore/cmd"

func main() {
	cmd.Execute()
}
