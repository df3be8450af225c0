// Command itoo is the terminal client of akai-itoo.
package main

import (
	"github.com/Vinitharameshchand/akai-itoo/internal/cli"
	"github.com/Vinitharameshchand/akai-itoo/internal/logging"
)

func main() {
	logging.Init("error")
	cli.Execute()
}
