package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/abba-pos/api/internal/config"
	"github.com/abba-pos/api/internal/dashboard"
	"github.com/abba-pos/api/internal/monitor"
	"github.com/abba-pos/api/internal/order"
	"github.com/abba-pos/api/internal/ws"
)

// terminalNotifier prints toasts to stdout and rings the terminal bell
// when an order comes out of the kitchen.
type terminalNotifier struct{}

func (terminalNotifier) OnToast(message, severity string) {
	fmt.Printf("[%s] %s\n", severity, message)
}

func (terminalNotifier) OnOrderReady(snap order.Snapshot) {
	fmt.Printf("\a*** READY: %s (%s) ***\n", snap.Number, snap.Identifier)
}

func renderBucket(bucket monitor.Bucket, orders []order.Snapshot) {
	fmt.Printf("-- %s (%d) --\n", bucket, len(orders))
	for _, snap := range orders {
		fmt.Printf("   %s  %s  %s\n", snap.Number, snap.Identifier, snap.Status)
	}
}

func main() {
	username := flag.String("username", "", "Staff username")
	password := flag.String("password", "", "Staff password")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment")
	}

	if *username == "" {
		*username = os.Getenv("MONITOR_USERNAME")
	}
	if *password == "" {
		*password = os.Getenv("MONITOR_PASSWORD")
	}
	if *username == "" || *password == "" {
		logrus.Fatal("username and password are required (flags or MONITOR_USERNAME / MONITOR_PASSWORD)")
	}

	cfg := config.Load()
	ctx := context.Background()

	client := dashboard.NewHTTPClient(cfg.APIBaseURL, "")
	if err := client.Login(ctx, *username, *password); err != nil {
		logrus.WithError(err).Fatal("login")
	}

	sess := dashboard.NewSession(client, terminalNotifier{})
	sess.Monitor().OnRender = renderBucket

	if err := sess.Refresh(ctx); err != nil {
		logrus.WithError(err).Fatal("load active orders")
	}

	for {
		if err := watch(cfg.WSOrdersURL, client.Token(), sess); err != nil {
			logrus.WithError(err).Warn("connection lost, reconnecting")
		}
		time.Sleep(3 * time.Second)

		if err := sess.Refresh(ctx); err != nil {
			logrus.WithError(err).Warn("refresh after reconnect")
		}
	}
}

// watch reads order events from the WebSocket until the connection
// drops.
func watch(wsURL, token string, sess *dashboard.Session) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	logrus.Info("watching order events")
	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if err := sess.HandleEvent(ev); err != nil {
			logrus.WithError(err).Warn("apply event")
		}
	}
}
