// Command displayencoderd runs the display capture and H.264 encoding
// pipeline as a standalone daemon, driven by the synthetic test-pattern
// producer, the X11 demo producer, or a recorded session.
package main

import "github.com/tenclass/sweet-encoder/cmd/displayencoderd/commands"

func main() {
	commands.Execute()
}
