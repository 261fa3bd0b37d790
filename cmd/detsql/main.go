package main

import (
	"os"

	"github.com/detsql/detsql/pkg/cmd"
	"github.com/rs/zerolog/log"
)

func main() {
	// runs the appropriate application mode, serve by default
	// see: github.com/detsql/detsql/pkg/cmd package for details
	if err := cmd.Execute(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("detsql exited")
	}
}
