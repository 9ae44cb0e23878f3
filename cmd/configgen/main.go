package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/config"
	"github.com/danmuck/wavebroker/internal/observability"
)

const defaultPath = "cmd/brokerctl/config.toml"

func main() {
	observability.InitLogger("configgen")

	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.Load(*input); err != nil {
			log.Fatal().Err(err).Msg("invalid config")
		}
		log.Info().Str("path", *input).Msg("validated broker config")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal().Err(err).Msg("write template")
	}
	log.Info().Str("path", *output).Msg("wrote broker config template")
}
