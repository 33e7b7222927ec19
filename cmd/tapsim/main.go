// Command tapsim runs taplink cards on the host: two or more cards tapping on
// a simulated line, the provisioning shell against a card stored in a bbolt
// file, and inspection of stored images.
package main

import (
	"os"
)

func main() {
	if err := CmdTapsim().Execute(); err != nil {
		os.Exit(1)
	}
}
