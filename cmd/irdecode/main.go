package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	if err := newRootCommand(os.Stdout).ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("exited program")
	}
}
