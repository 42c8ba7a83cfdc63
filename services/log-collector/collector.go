package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// LogTopic: všechny služby publikují logy pod logs/<služba>.
const LogTopic = "logs/#"

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Collector zapisuje přijaté řádky logů do <dir>/<služba>.log.
type Collector struct {
	dir string
	mu  sync.Mutex
}

func NewCollector(dir string) (*Collector, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Collector{dir: dir}, nil
}

// ServiceFromTopic vytáhne jméno služby z "logs/<služba>[/...]".
// Jméno se použije jako název souboru, proto se nepovolí nic jako "..".
func ServiceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != "logs" {
		return "", fmt.Errorf("unexpected log topic %q", topic)
	}
	name := parts[1]
	if !serviceNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid service name %q", name)
	}
	return name, nil
}

// Append připíše řádek na konec souboru služby. Soubor se otevírá pro každý
// zápis, aby fungovala externí rotace (logrotate).
func (c *Collector) Append(service string, line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	filename := filepath.Join(c.dir, service+".log")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// slog řádek už newline má, MQTT payload odjinud ale nemusí
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line[:len(line):len(line)], '\n')
	}
	_, err = f.Write(line)
	return err
}
