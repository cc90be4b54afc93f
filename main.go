package main

import "github.com/kozaktomas/facefinder/cmd"

func main() {
	cmd.Execute()
}
