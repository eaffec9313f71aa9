package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/agent"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	env, err := agent.LoadEnv()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring invalid environment")
	}
	if env.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := agent.New(agent.Options{Env: &env}).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
