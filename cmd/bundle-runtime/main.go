package main

import "github.com/oshokin/runtime-bundler/cmd/bundle-runtime/cmd"

func main() {
	cmd.Execute()
}
