package main

import (
	"context"
	"os"
)

var App *StakeApp

func main() {
	App = initApp()
	err := App.cliCmd.Run(context.Background(), os.Args)
	if err != nil {
		App.logger.Error("Error in execution:", "msg", err)
		os.Exit(1)
	}
}
