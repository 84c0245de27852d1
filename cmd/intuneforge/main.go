package main

import "github.com/oshokin/intuneforge/cmd/intuneforge/cmd"

func main() {
	cmd.Execute()
}
