package main

import "github.com/vcpkg-tools/vcpkgman/cmd/vcpkgman/cmd"

func main() {
	cmd.Execute()
}
