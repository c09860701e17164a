package main

import "github.com/oshokin/runtime-bundler/cmd/asset-list/cmd"

func main() {
	cmd.Execute()
}
