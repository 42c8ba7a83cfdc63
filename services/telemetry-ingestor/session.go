package main

import (
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hendranatadiria/tfg-backend/internal/config"
	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

// submitter je to, co session potřebuje od ingest.Dispatcher.
type submitter interface {
	Submit(topic string, payload []byte) bool
}

// session obsluhuje callbacky paho klienta. Pole se doplní před Connect,
// klient ale musí existovat dřív kvůli logování do MQTT.
type session struct {
	dispatcher submitter
	logger     *slog.Logger
}

func (s *session) clientOptions(cfg config.MQTT) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// Perzistentní session: broker drží odběr i během krátkého výpadku.
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(cfg.ReconnectInterval)
	opts.SetMaxReconnectInterval(cfg.ReconnectInterval)
	// Zprávy se stejně zpracovávají souběžně v Dispatcheru.
	opts.SetOrderMatters(false)

	opts.SetDefaultPublishHandler(s.onMessage)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetReconnectingHandler(s.onReconnecting)
	return opts
}

// onConnect se volá po každém (re)connectu, odběr se proto obnovuje tady.
func (s *session) onConnect(client mqtt.Client) {
	filters := make(map[string]byte, len(telemetry.Topics()))
	for _, topic := range telemetry.Topics() {
		filters[topic] = 0
	}

	token := client.SubscribeMultiple(filters, s.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error("Subscribe selhal", "topics", telemetry.Topics(), "error", err)
		return
	}
	s.logger.Info("Připojeno k MQTT, poslouchám", "topics", telemetry.Topics())
}

func (s *session) onMessage(client mqtt.Client, msg mqtt.Message) {
	if !s.dispatcher.Submit(msg.Topic(), msg.Payload()) {
		s.logger.Warn("Zpráva zahozena, služba se vypíná", "topic", msg.Topic())
	}
}

func (s *session) onConnectionLost(client mqtt.Client, err error) {
	s.logger.Warn("Spojení s MQTT ztraceno", "error", err)
}

func (s *session) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	s.logger.Info("Obnovuji spojení s MQTT")
}
