package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/robotalks/subbus/pkg/board"
	"github.com/robotalks/subbus/pkg/env"
	fx "github.com/robotalks/subbus/pkg/framework"
)

func init() {
	board.SetupFlags()
}

func main() {
	flag.Parse()

	conf := board.NewConfig()
	t, err := env.NewTransport(conf.TransportURL, env.BoardSide, uint8(conf.CANBoard))
	if err != nil {
		log.Fatalln(err)
	}
	b := conf.MustNewBoard(t)

	loop := fx.NewLoop().Add(b)
	loop.Interval = conf.PollInterval
	loop.RunOrFail(fx.NewRunner().HandleSignals().Context)
	log.Printf("stats: %+v", b.Engine.Stats())
}
