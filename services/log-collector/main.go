package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hendranatadiria/tfg-backend/internal/config"
	"github.com/hendranatadiria/tfg-backend/internal/logging"
)

const serviceName = "log-collector"

func main() {
	// 1. Konfigurace a vlastní logger (jen stdout, sám sebe do MQTT neposílá)
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, serviceName, cfg.LogLevel())
	slog.SetDefault(logger)

	dir := cfg.CollectorDir()
	logger.Info("Startuji Log Collector", "dir", dir)

	// 2. Příprava adresáře pro logy
	collector, err := NewCollector(dir)
	if err != nil {
		logger.Error("Nelze vytvořit adresář pro logy", "error", err)
		os.Exit(1)
	}

	// 3. MQTT klient, odběr se obnovuje po každém reconnectu
	mq := cfg.MQTT()
	opts := mqtt.NewClientOptions().AddBroker(mq.Broker).SetClientID(mq.ClientID)
	if mq.Username != "" {
		opts.SetUsername(mq.Username)
		opts.SetPassword(mq.Password)
	}
	opts.SetConnectTimeout(mq.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(mq.ReconnectInterval)

	handler := messageHandler(collector, logger)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if token := client.Subscribe(LogTopic, 0, handler); token.Wait() && token.Error() != nil {
			logger.Error("Subscribe selhal", "topic", LogTopic, "error", token.Error())
			return
		}
		logger.Info("Poslouchám logy", "topic", LogTopic)
	})

	client := mqtt.NewClient(opts)
	client.Connect()
	defer client.Disconnect(250)

	// 4. Wait loop
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Vypínám službu...")
}

// messageHandler zapíše každou zprávu z logs/<služba> do souboru služby.
func messageHandler(c *Collector, logger *slog.Logger) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		service, err := ServiceFromTopic(msg.Topic())
		if err != nil {
			logger.Warn("Ignoruji zprávu se špatným topicem", "topic", msg.Topic(), "error", err)
			return
		}
		if err := c.Append(service, msg.Payload()); err != nil {
			logger.Error("Chyba při zápisu do souboru", "service", service, "error", err)
		}
	}
}
