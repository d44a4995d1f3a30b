package main

import "overlay-engine/cmd"

func main() {
	cmd.Execute()
}
