package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	rpc "github.com/RidgeA/bus-rpc"
	"github.com/RidgeA/bus-rpc/transport"
	"github.com/nats-io/nats.go"
)

func main() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	bus, err := transport.DialNATS(nats.DefaultURL, nats.Name("example"))
	if err != nil {
		log.Fatal(err.Error())
	}
	defer bus.Close()

	server, err := rpc.NewServer(bus)
	if err != nil {
		log.Fatal(err.Error())
	}

	if err := server.RegisterHandler("Text", "upper", func(payload []byte) ([]byte, error) {
		return []byte(strings.ToUpper(string(payload))), nil
	}); err != nil {
		log.Fatal(err.Error())
	}

	if err := server.RegisterHandler("Text", "lower", func(payload []byte) ([]byte, error) {
		return []byte(strings.ToLower(string(payload))), nil
	}); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Run(ctx); err != nil {
			log.Fatal(err.Error())
		}
	}()
	for !server.Running() {
		time.Sleep(10 * time.Millisecond)
	}

	client, err := rpc.NewClient(bus, rpc.SetAckTimeout(time.Second), rpc.SetResultTimeout(5*time.Second))
	if err != nil {
		log.Fatal(err.Error())
	}
	defer client.Shutdown()

	response, err := client.Call(ctx, "Text", "upper", []byte("hello!"))
	if err != nil {
		log.Fatal(err.Error())
	}
	fmt.Printf("upper: %s\n", response)

	response, err = client.Call(ctx, "Text", "lower", []byte("BYE!"))
	if err != nil {
		log.Fatal(err.Error())
	}
	fmt.Printf("lower: %s\n", response)

	cancel()
	<-server.Done()
}
