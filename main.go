package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"perepiska/internal/api"
	"perepiska/internal/chat"
	"perepiska/internal/config"
	"perepiska/internal/inbox"
	"perepiska/internal/presence"
	"perepiska/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	username := flag.String("user", "", "Username to sign in with")
	password := flag.String("pass", "", "Password")
	register := flag.Bool("register", false, "Create the account instead of logging in")
	peerName := flag.String("peer", "", "Peer username to open a conversation with")
	flag.Parse()

	if *username == "" || *password == "" {
		return errors.New("-user and -pass are required")
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.APIURL, cfg.RequestTimeout)

	authenticate := client.Login
	if *register {
		authenticate = client.Register
	}
	creds, err := authenticate(ctx, *username, *password)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	session := ws.Dial(ctx, cfg.WSURL, creds.User, cfg.ReconnectDelay)
	defer func() { _ = session.Close() }()

	tracker := presence.NewTracker()
	offPresence := tracker.Bind(session)
	defer offPresence()

	agg := inbox.NewAggregator(client.ListPeers)
	if err := agg.Load(ctx); err != nil {
		return err
	}
	offInbox := agg.Bind(ctx, session)
	defer offInbox()

	printInbox(agg, tracker)

	if *peerName == "" {
		<-ctx.Done()
		return nil
	}

	var conv *chat.Conversation
	for _, p := range agg.Peers() {
		if p.Username == *peerName {
			conv, err = chat.Open(ctx, client, session, creds.User, p.Identity, chat.Options{
				OnUpdate: func() { render(conv) },
			})
			break
		}
	}
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("unknown peer %q", *peerName)
	}
	defer conv.Close()
	render(conv)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "/quit":
				return context.Canceled
			case line == "/inbox":
				printInbox(agg, tracker)
			case strings.HasPrefix(line, "/delete "):
				conv.Delete(gCtx, strings.TrimPrefix(line, "/delete "))
			default:
				conv.SetDraft(line)
				if _, err := conv.Send(gCtx, line); err != nil {
					log.Printf("send failed: %v", err)
				}
				conv.SetDraft("")
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gCtx.Err()
	})

	return g.Wait()
}

func printInbox(agg *inbox.Aggregator, tracker *presence.Tracker) {
	fmt.Println("-- peers --")
	for _, p := range agg.Peers() {
		marker := " "
		if tracker.Online(p.ID) {
			marker = "*"
		}
		preview := ""
		if p.LastMessage != nil {
			preview = p.LastMessage.Text
		}
		fmt.Printf("%s %-16s %s\n", marker, p.Username, preview)
	}
}

func render(conv *chat.Conversation) {
	if conv == nil {
		return
	}
	msgs := conv.Messages()
	// Render order is most recent first; the terminal wants chronological.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		fmt.Printf("[%s] %s: %s (%s)\n", m.CreatedAt.Format("15:04"), m.Sender.Username, m.Text, m.Status)
	}
	if conv.PeerTyping() {
		fmt.Printf("%s is typing...\n", conv.Peer().Username)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
