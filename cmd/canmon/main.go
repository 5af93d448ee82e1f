package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/robotalks/subbus/pkg/cancomm"
	"github.com/robotalks/subbus/pkg/cancomm/mqtt"
	"github.com/robotalks/subbus/pkg/env"
	fx "github.com/robotalks/subbus/pkg/framework"
)

var (
	mqttURL = "mqtt://localhost:1883/subbus/"
)

func init() {
	if val := os.Getenv("SUBBUS_TRANSPORT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func describe(f cancomm.Frame) string {
	data := f.Payload()
	if len(data) == 0 {
		return "empty"
	}
	cmd, seq := cancomm.SplitCmd(data[0])
	kind := "req"
	if cancomm.IsReply(f.ID) {
		kind = "rep"
	}
	return fmt.Sprintf("board=%d id=%02d %s %s seq=%d", cancomm.BoardOf(f.ID),
		f.ID&cancomm.IDReqIDMask, kind, cmd, seq)
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, prefix, err := mqtt.ClientOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if opts.ClientID == "" {
		opts.SetClientID(env.ClientID("mon"))
	}
	q := mqtt.NewQueue(opts, prefix)
	mqtt.WatchFrames(q, func(topic string, f cancomm.Frame) {
		log.Printf("%s: %s  %s", topic, f, describe(f))
	})
	err = fx.NewRunner().HandleSignals().Go(fx.NamedRun("mqtt", fx.RunFunc(func(ctx context.Context) error {
		if err := q.Connect(); err != nil {
			return err
		}
		defer q.Close()
		<-ctx.Done()
		return ctx.Err()
	}))).Wait()
	if err != nil {
		log.Fatalln(err)
	}
}
