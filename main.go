package main

import "github.com/kozaktomas/face-verify/cmd"

func main() {
	cmd.Execute()
}
