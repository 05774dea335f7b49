package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"00-smoke-test/server"
)

// Deep inside Initrode Global's enterprise management framework lies a
// component that writes data to a server and expects to read the same data
// back. We need you to write the server to echo the data back.

// Make sure you don't mangle binary data, and that you can handle at least 5
// simultaneous clients.

// Once the client has finished sending data to you it shuts down its sending
// side. Once you've reached end-of-file on your receiving side, and sent back
// all the data you've received, close the socket so that the client knows
// you've finished.

const (
	addr = ":8080"
	// Each worker serves one connection at a time, so this is also the
	// number of simultaneous clients.
	workerCount = 8
)

func main() {
	log.SetOutput(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := server.Listen(ctx, addr, workerCount, server.Echo)
	if err != nil {
		log.Fatal(err)
	}
	if err := pool.Wait(); err != nil {
		log.Fatal(err)
	}
}
