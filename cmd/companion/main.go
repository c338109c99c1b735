package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/chain"
	"github.com/facepay/facepay/client"
	"github.com/facepay/facepay/config"
	"github.com/facepay/facepay/service"
	"github.com/facepay/facepay/wallet"
)

// stdoutOpener prints deep-link URLs instead of handing them to a
// mobile OS. The operator opens the URL on the device holding the
// wallet and pastes the redirect it produces back on stdin.
type stdoutOpener struct{}

func (stdoutOpener) OpenURL(url string) error {
	fmt.Println("open in wallet:", url)
	return nil
}

func main() {
	cfg, err := config.ReadConfig("config")
	if err != nil {
		panic(err)
	}
	logger := logrus.WithField("service", "companion").Logger

	session := wallet.NewSession(wallet.Options{
		BaseURL:      cfg.Phantom.BaseURL,
		AppURL:       cfg.Phantom.AppURL,
		RedirectBase: cfg.Phantom.RedirectBase,
		Cluster:      cfg.Solana.Cluster,
	}, stdoutOpener{})

	apiClient := client.NewClient(fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port))
	chainClient := chain.NewClient(cfg.Solana.Endpoint)
	companion := service.NewCompanion(apiClient, session, chainClient, cfg.PollInterval())

	if err := session.Connect(); err != nil {
		logger.Fatalf("fail to start wallet connection, err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// redirects arrive on stdin, one URL per line
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "quit" {
				cancel()
				return
			}
			event, err := companion.HandleRedirect(line)
			if err != nil {
				logger.Errorf("fail to handle redirect, err: %v", err)
				continue
			}
			if event.Kind == wallet.EventConnected {
				logger.WithField("wallet", event.WalletAddress).Info("connected")
			}
		}
	}()

	// wait for the connect redirect before polling
	for !session.Connected() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}

	if err := companion.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("companion stopped, err: %v", err)
	}
}
