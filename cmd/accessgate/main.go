// Command accessgate runs the access policy control plane.
package main

import "github.com/Sentinel-Gate/accessgate/cmd/accessgate/cmd"

func main() {
	cmd.Execute()
}
