package main

import "github.com/oshokin/ota-server/cmd/ota-admin/cmd"

func main() {
	cmd.Execute()
}
