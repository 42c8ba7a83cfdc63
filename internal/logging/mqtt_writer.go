package logging

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher je část mqtt.Client, kterou writer potřebuje.
type Publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTWriter implementuje io.Writer: každý zápis (jeden řádek slog)
// odejde jako zpráva na logs/<služba>.
type MQTTWriter struct {
	client Publisher
	topic  string
}

func NewMQTTWriter(client Publisher, service string) *MQTTWriter {
	return &MQTTWriter{
		client: client,
		topic:  fmt.Sprintf("logs/%s", service),
	}
}

func (w *MQTTWriter) Topic() string { return w.topic }

// Write nečeká na potvrzení (Token.Wait se nevolá), logování nesmí brzdit
// zpracování. Bez spojení se řádek zahodí, stdout ho má stejně.
func (w *MQTTWriter) Write(p []byte) (int, error) {
	if !w.client.IsConnectionOpen() {
		return len(p), nil
	}

	// slog buffer po návratu znovu použije
	payload := make([]byte, len(p))
	copy(payload, p)

	w.client.Publish(w.topic, 0, false, payload)
	return len(p), nil
}
