package telemetry

import "time"

// Názvy MQTT topiců, na které publikuje firmware nádrží.
// Nejsou konfigurovatelné, firmware je má napevno.
const (
	TopicTemperature = "/cc-shs/temp"
	TopicLevel       = "/cc-shs/level"
)

// Topics vrací seznam všech topiců, které pipeline odebírá.
func Topics() []string {
	return []string{TopicTemperature, TopicLevel}
}

// KnownTopic říká, jestli topic patří do zpracovávané sady.
func KnownTopic(topic string) bool {
	return topic == TopicTemperature || topic == TopicLevel
}

// Device je záznam zařízení. ID přidělil firmware senzoru, my ho jen přebíráme.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultDeviceName je jméno, které dostane zařízení při prvním výskytu.
func DefaultDeviceName(id string) string {
	return "New Device " + id
}

// Key identifikuje měření: jedno zařízení má v daném čase nejvýš jeden záznam.
type Key struct {
	DeviceID  string
	Timestamp time.Time
}

// Reading je společné rozhraní dekódovaných měření.
type Reading interface {
	Key() Key
	Topic() string
}

// LevelReading je jedno měření hladiny.
// Height je surová vzdálenost ze senzoru, Level odvozené naplnění.
type LevelReading struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Height    float64   `json:"height"`
	Level     float64   `json:"level"`

	// Baseline označuje začátek nového cyklu plnění (T0).
	// Nastavuje ho jen detektor, a to až po uložení; zpět na false se nikdy nevrací.
	Baseline bool `json:"baseline"`
}

func (r LevelReading) Key() Key      { return Key{DeviceID: r.DeviceID, Timestamp: r.Timestamp} }
func (r LevelReading) Topic() string { return TopicLevel }

// Qualifying je true pro měření, se kterým smí detektor porovnávat.
func (r LevelReading) Qualifying() bool {
	return r.Level > 0
}

// TemperatureReading je jedno měření teploty.
type TemperatureReading struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

func (r TemperatureReading) Key() Key      { return Key{DeviceID: r.DeviceID, Timestamp: r.Timestamp} }
func (r TemperatureReading) Topic() string { return TopicTemperature }
