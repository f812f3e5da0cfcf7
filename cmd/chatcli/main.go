package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"marketchat/internal/auth"
	"marketchat/internal/config"
	"marketchat/internal/models"
	"marketchat/internal/session"
	"marketchat/pkg/logger"
)

func main() {
	gatewayURL := flag.String("gateway", "", "Gateway base URL (default from GATEWAY_URL)")
	userID := flag.String("user", "", "User id")
	name := flag.String("name", "", "Display name")
	role := flag.String("role", "customer", "Role: customer, merchant or admin")
	shopID := flag.String("shop", "", "Shop id (required for customer and merchant)")
	token := flag.String("token", "", "Bearer token (minted locally when empty)")
	flag.Parse()

	cfg := config.Load()
	if *gatewayURL == "" {
		*gatewayURL = cfg.Client.GatewayURL
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: chatcli -user <id> [-name <name>] [-role <role>] [-shop <id>]")
		os.Exit(2)
	}
	if *name == "" {
		*name = *userID
	}

	bearer := *token
	if bearer == "" {
		var err error
		bearer, err = auth.NewService(cfg).GenerateToken(auth.Identity{
			UserID: *userID,
			Name:   *name,
			Role:   models.Role(*role),
			ShopID: *shopID,
		})
		if err != nil {
			logger.Fatal("failed to mint token: %v", err)
		}
	}

	sess := session.New(session.Config{
		GatewayURL:           *gatewayURL,
		MaxReconnectAttempts: cfg.Client.MaxReconnectAttempts,
		ReconnectDelay:       cfg.Client.ReconnectDelay,
	})
	defer sess.Stop()

	sess.SetIdentity(session.Identity{
		UserID: *userID,
		Role:   models.Role(*role),
		ShopID: *shopID,
		Token:  bearer,
	})

	if room, err := sess.Room(); err != nil {
		logger.Fatal("cannot join a room: %v", err)
	} else {
		fmt.Printf("room %s (%s)\n", room.Name, room.Kind)
	}

	go watch(sess)

	fmt.Println("type a message, or /peer <id>, /members, /notifications, /read-all, /promo <id>, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/members":
			for _, m := range sess.Members() {
				status := "offline"
				if m.IsOnline {
					status = "online"
				}
				fmt.Printf("  %s (%s) %s\n", m.Name, m.ID, status)
			}
		case line == "/notifications":
			for _, n := range sess.Notifications() {
				marker := " "
				if !n.IsRead {
					marker = "*"
				}
				fmt.Printf(" %s %s: %s\n", marker, n.SenderName, n.Message)
			}
		case line == "/read-all":
			sess.MarkAllNotificationsRead()
		case strings.HasPrefix(line, "/peer "):
			sess.SelectPeer(strings.TrimSpace(strings.TrimPrefix(line, "/peer")))
		case strings.HasPrefix(line, "/promo "):
			peer := strings.TrimSpace(strings.TrimPrefix(line, "/promo"))
			if err := sess.OfferPromotion(peer); err != nil {
				fmt.Printf("! %v\n", err)
			}
		default:
			sess.SendMessage(line)
		}
	}
}

// watch polls the session and prints connection transitions and new messages.
func watch(sess *session.Session) {
	lastState := session.ConnState(-1)
	lastErr := ""
	printed := 0

	for {
		if state := sess.ConnState(); state != lastState {
			lastState = state
			fmt.Printf("-- %s\n", state)
		}
		if errText := sess.LastError(); errText != lastErr {
			lastErr = errText
			if errText != "" {
				fmt.Printf("!! %s\n", errText)
			}
		}

		msgs := sess.MessagesForActivePeer()
		for ; printed < len(msgs); printed++ {
			m := msgs[printed]
			body := m.Content
			if m.IsDeleted {
				body = "(deleted)"
			}
			tag := ""
			if m.HasPromotionMarker {
				tag = " [promo]"
			}
			fmt.Printf("<%s>%s %s\n", m.PeerName, tag, body)
		}

		time.Sleep(300 * time.Millisecond)
	}
}
