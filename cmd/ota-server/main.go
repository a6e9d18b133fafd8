package main

import "github.com/oshokin/ota-server/cmd/ota-server/cmd"

func main() {
	cmd.Execute()
}
