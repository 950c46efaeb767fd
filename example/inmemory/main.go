package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	rpc "github.com/RidgeA/bus-rpc"
	"github.com/RidgeA/bus-rpc/internal/logging"
	"github.com/RidgeA/bus-rpc/transport/inmemory"
)

func main() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	bus := inmemory.New()
	defer bus.Close()

	// two workers and room for eight more: the rest of the burst is dropped
	server, err := rpc.NewServer(bus,
		rpc.SetLogger(logging.NewSlogDefault()),
		rpc.SetThreadPoolSize(2),
		rpc.SetMaxQueue(8),
	)
	if err != nil {
		log.Fatal(err.Error())
	}

	if err := server.RegisterHandler("Log", "write", func(payload []byte) ([]byte, error) {
		time.Sleep(500 * time.Millisecond)
		fmt.Printf("%s: server log: %s\n", time.Now().Format("15:04:05.999999"), string(payload))
		return nil, nil
	}); err != nil {
		log.Fatal(err.Error())
	}

	go func() {
		if err := server.Run(context.Background()); err != nil {
			log.Fatal(err.Error())
		}
	}()
	for !server.Running() {
		time.Sleep(10 * time.Millisecond)
	}

	client, err := rpc.NewClient(bus)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer client.Shutdown()

	for i := 0; i < 12; i++ {
		if err := client.Notify("Log", "write", []byte(strconv.Itoa(i)+":hello!")); err != nil {
			log.Fatal(err.Error())
		}
	}

	time.Sleep(100 * time.Millisecond)
	server.Stop()
	<-server.Done()
}
