package main

import (
	"github.com/robotalks/subbus/pkg/cli/sh"
	"github.com/robotalks/subbus/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
