package main

import "github.com/xvierd/thirdtime/cmd"

func main() {
	cmd.Execute()
}
