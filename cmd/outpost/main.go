// Command outpost runs the outpost game-state service.
package main

import "github.com/outpost-game/outpost/internal/cli"

func main() {
	cli.Execute()
}
