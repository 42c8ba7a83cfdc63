package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DecodeReason klasifikuje, proč byla zpráva odmítnuta.
type DecodeReason int

const (
	ReasonEmpty DecodeReason = iota + 1
	ReasonInvalidEncoding
	ReasonInvalidFields
)

func (r DecodeReason) String() string {
	switch r {
	case ReasonEmpty:
		return "empty"
	case ReasonInvalidEncoding:
		return "invalid_encoding"
	case ReasonInvalidFields:
		return "invalid_fields"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyPayload    = errors.New("empty payload")
	ErrInvalidEncoding = errors.New("payload is not valid JSON")
	ErrInvalidFields   = errors.New("missing or non-numeric fields")
	ErrUnknownTopic    = errors.New("unknown topic")
)

// DecodeError nese důvod odmítnutí a topic, na kterém zpráva přišla.
// errors.Is(err, ErrInvalidFields) apod. funguje podle Reason.
type DecodeError struct {
	Reason DecodeReason
	Topic  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode %s: %s", e.Topic, e.Reason)
	}
	return fmt.Sprintf("decode %s: %s: %v", e.Topic, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	switch e.Reason {
	case ReasonEmpty:
		return target == ErrEmptyPayload
	case ReasonInvalidEncoding:
		return target == ErrInvalidEncoding
	case ReasonInvalidFields:
		return target == ErrInvalidFields
	}
	return false
}

// Pole payloadu. "distance" je starší název pro "height" z dřívější verze firmwaru,
// čte se jen tehdy, když "height" v payloadu chybí úplně.
const (
	fieldDeviceID = "deviceId"
	fieldEpoch    = "epoch"
	fieldTemp     = "temp"
	fieldHeight   = "height"
	fieldDistance = "distance"
	fieldLevel    = "level"
)

// maxEpoch je 9999-12-31T23:59:59Z; větší hodnoty bereme jako nečíselné.
const maxEpoch = 253402300799

// Decoder převádí surový payload na typované měření. Nemá vedlejší efekty.
type Decoder struct {
	now func() time.Time
}

func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// WithClock nahradí zdroj času pro měření bez "epoch" (testy).
func (d *Decoder) WithClock(now func() time.Time) *Decoder {
	return &Decoder{now: now}
}

// Decode zpracuje jednu zprávu z topicu. Vrací LevelReading nebo TemperatureReading,
// případně *DecodeError.
func (d *Decoder) Decode(topic string, payload []byte) (Reading, error) {
	if !KnownTopic(topic) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	// KROK 1: Prázdná zpráva
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &DecodeError{Reason: ReasonEmpty, Topic: topic}
	}

	// KROK 2: Syntaxe JSON
	if !json.Valid(payload) {
		return nil, &DecodeError{Reason: ReasonInvalidEncoding, Topic: topic}
	}

	// KROK 3: Musí to být objekt (číslo nebo pole je sice validní JSON, ale nemá pole)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, invalidFields(topic, "payload is not a JSON object")
	}

	deviceID, ok := stringField(fields, fieldDeviceID)
	if !ok {
		return nil, invalidFields(topic, "missing %q", fieldDeviceID)
	}

	ts := d.timestamp(fields)

	if topic == TopicTemperature {
		value, ok := numberField(fields, fieldTemp)
		if !ok {
			return nil, invalidFields(topic, "missing or non-numeric %q", fieldTemp)
		}
		return TemperatureReading{DeviceID: deviceID, Timestamp: ts, Value: value}, nil
	}

	heightKey := fieldHeight
	if _, present := fields[fieldHeight]; !present {
		heightKey = fieldDistance
	}
	height, ok := numberField(fields, heightKey)
	if !ok {
		return nil, invalidFields(topic, "missing or non-numeric %q", heightKey)
	}
	level, ok := numberField(fields, fieldLevel)
	if !ok {
		return nil, invalidFields(topic, "missing or non-numeric %q", fieldLevel)
	}

	return LevelReading{DeviceID: deviceID, Timestamp: ts, Height: height, Level: level}, nil
}

// timestamp vezme "epoch" (celé sekundy). Když chybí nebo není číslo, použije se
// aktuální čas procesu (UTC, zaokrouhleno na ms).
func (d *Decoder) timestamp(fields map[string]json.RawMessage) time.Time {
	if epoch, ok := numberField(fields, fieldEpoch); ok {
		secs := math.Trunc(epoch)
		if math.Abs(secs) <= maxEpoch {
			return time.Unix(int64(secs), 0).UTC()
		}
	}
	return d.now().UTC().Truncate(time.Millisecond)
}

func invalidFields(topic, format string, args ...any) *DecodeError {
	return &DecodeError{Reason: ReasonInvalidFields, Topic: topic, Err: fmt.Errorf(format, args...)}
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// numberField přijímá JSON číslo i číselný řetězec ("12.5"), firmware posílá obojí.
// NaN a nekonečna neprojdou.
func numberField(fields map[string]json.RawMessage, name string) (float64, bool) {
	raw, ok := fields[name]
	if !ok {
		return 0, false
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
