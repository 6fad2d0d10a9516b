package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/andy6609/chat-relay/internal/client"
	"github.com/andy6609/chat-relay/internal/protocol"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <host> <port>\nExample: %s 127.0.0.1 5000\n", os.Args[0], os.Args[0])
		os.Exit(1)
	}
	host, port := os.Args[1], os.Args[2]

	stdin := bufio.NewReader(os.Stdin)
	fmt.Print("Nick: ")
	nick, err := stdin.ReadString('\n')
	if err != nil && nick == "" {
		fmt.Fprintln(os.Stderr, "could not read nick")
		os.Exit(1)
	}
	nick = strings.TrimSpace(nick)
	if nick == "" {
		fmt.Fprintln(os.Stderr, "nick must not be empty")
		os.Exit(1)
	}
	nick = protocol.Truncate(nick, protocol.MaxNameLength)

	addr := net.JoinHostPort(host, port)
	fmt.Printf("Connecting to %s...\n", addr)
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Connected as %q. Type /help for commands.\n", nick)
	err = client.Run(ctx, conn, nick, stdin, os.Stdout)
	switch {
	case errors.Is(err, client.ErrServerClosed):
		fmt.Println("Server disconnected.")
	case err != nil && !errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
