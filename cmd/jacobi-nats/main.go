// Command jacobi-nats runs a standalone NATS server with JetStream for
// multi-process runs of `jacobi -mode nats`.
//
// It prints the connect URL to stdout so a launcher script can pass it to
// every worker:
//
//	NATS_URL=nats://127.0.0.1:4222
//	NATS_READY=true
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/arloliu/jacobi/internal/natsutil"
)

func main() {
	host := flag.String("host", "127.0.0.1", "listen host")
	port := flag.Int("port", 4222, "listen port (-1 picks a free port)")
	storeDir := flag.String("store-dir", "", "JetStream store directory (default: a temporary directory)")
	verbose := flag.Bool("verbose", false, "enable server logging")
	flag.Parse()

	dir := *storeDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "jacobi-nats-*")
		if err != nil {
			log.Fatal("Failed to create temp directory:", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	srv, err := natsutil.StartEmbedded(natsutil.EmbeddedOptions{
		Host:     *host,
		Port:     *port,
		StoreDir: dir,
		Logs:     *verbose,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to start NATS server: %v\n", err)
		os.Exit(1) //nolint:gocritic // the OS cleans up the store on exit
	}

	fmt.Printf("NATS_URL=%s\n", srv.ClientURL())
	fmt.Println("NATS_READY=true")
	_, _ = fmt.Fprintf(os.Stderr, "NATS server started (PID: %d)\n", os.Getpid())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	_, _ = fmt.Fprintln(os.Stderr, "Shutting down NATS server...")

	srv.Shutdown()
	srv.WaitForShutdown()
}
