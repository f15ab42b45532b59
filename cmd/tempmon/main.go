package main

import "github.com/oshokin/tempmon/cmd/tempmon/cmd"

func main() {
	cmd.Execute()
}
