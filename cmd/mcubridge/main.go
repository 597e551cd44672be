package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/dispatch"
	"github.com/robotalks/mcubridge/pkg/env"
	fx "github.com/robotalks/mcubridge/pkg/framework"
	"github.com/robotalks/mcubridge/pkg/mqtt"
	"github.com/robotalks/mcubridge/pkg/mqttcmd"
	"github.com/robotalks/mcubridge/pkg/transport/dial"
	"github.com/robotalks/mcubridge/pkg/wire"
)

//go-build: CGO_ENABLED=0

func run(conf *env.Config) error {
	opts, prefix, err := mqtt.ClientOptionsFromURL(conf.MQTTURL)
	if err != nil {
		return err
	}
	if opts.ClientID == "" {
		opts.SetClientID(conf.ClientID)
	}
	client := mqtt.NewClient(opts, prefix)

	link, err := dial.Dial(conf.Link)
	if err != nil {
		return fmt.Errorf("open link %s: %w", conf.Link, err)
	}
	glog.Infof("link %s open, broker %s as %s", conf.Link, conf.MQTTURL, opts.ClientID)

	session := mqttcmd.NewSession(client, wire.NewBuilder(link))
	session.MaxTopicLen = conf.MaxTopicLen
	session.MaxPayloadLen = conf.MaxPayloadLen
	bridge := dispatch.NewBridgeSize(session.RegisterTo(dispatch.NewTable()), link, conf.EventQueueSize)
	bridge.Done = func(pkt []byte, status uint32) {
		glog.V(2).Infof("command done: %d bytes, status %#x", len(pkt), status)
	}
	session.Post = bridge.Post

	return fx.NewRunner().HandleSignals().Go(
		fx.NamedRun("bridge", bridge),
		fx.NamedRun("link", fx.CloseOnStop(link)),
		fx.NamedRun("mqtt", fx.CloseOnStop(client)),
	).Wait()
}

func main() {
	loader := env.NewLoader(flag.CommandLine)
	flag.Parse()
	conf, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	err = run(conf)
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
