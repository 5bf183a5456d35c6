// Package homebridge connects the entity store to the home automation host
// over MQTT. Sensor states flow in, owned entities and charger commands flow
// out.
package homebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/spotpilot-go/entity"
)

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	// Entity states arrive on <StateTopic>/<entity id>
	StateTopic string
	// Owned entities and commands are published below CommandTopic
	CommandTopic string
	Watchdog     time.Duration
	// Readings of these entities are averaged over the given window
	Smoothing map[string]int
}

// statePayload is the JSON form of an entity message. Plain payloads carry
// the state only.
type statePayload struct {
	State      *string           `json:"state"`
	Attributes entity.Attributes `json:"attributes"`
}

type Bridge struct {
	client    mqtt.Client
	logger    *slog.Logger
	store     entity.Store
	opts      Options
	smoothers map[string]*MovingAverage
	smoothMu  sync.Mutex

	lastMessage   ConcurrentTimer
	trafficOk     bool
	trafficMu     sync.Mutex
	stopMonitorCh chan struct{}

	pending      map[string]pendingCommand
	pendingMutex sync.Mutex
	ackTimeout   time.Duration
	stopPurgeCh  chan struct{}
}

func New(logger *slog.Logger, store entity.Store, opts Options) *Bridge {
	logger = logger.With("module", "homebridge")
	routePahoLogging(logger)

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)
	clientOpts.SetAutoReconnect(true)

	b := newBridge(logger, store, nil, opts)
	clientOpts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected")
		if err := b.subscribe(); err != nil {
			logger.Error("MQTT subscribe failed", slog.Any("error", err))
		}
	}
	clientOpts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}
	b.client = mqtt.NewClient(clientOpts)
	return b
}

func newBridge(logger *slog.Logger, store entity.Store, client mqtt.Client, opts Options) *Bridge {
	b := &Bridge{
		client:     client,
		logger:     logger,
		store:      store,
		opts:       opts,
		smoothers:  make(map[string]*MovingAverage),
		trafficOk:  true,
		pending:    make(map[string]pendingCommand),
		ackTimeout: 10 * time.Second,
	}
	for id, size := range opts.Smoothing {
		if size > 1 {
			b.smoothers[id] = NewMovingAverage(size)
		}
	}
	return b
}

// Connect connects to the broker. Subscriptions are made on every
// (re)connect.
func (b *Bridge) Connect() error {
	b.logger.Debug("connecting MQTT client")
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	b.lastMessage.Reset()
	b.startWatchdog()
	b.startPurgeRoutine()
	return nil
}

func (b *Bridge) Disconnect() {
	b.logger.Info("disconnecting MQTT client")
	if b.stopPurgeCh != nil {
		close(b.stopPurgeCh)
		b.stopPurgeCh = nil
	}
	if b.stopMonitorCh != nil {
		close(b.stopMonitorCh)
		b.stopMonitorCh = nil
	}

	token := b.client.Unsubscribe(b.stateFilter(), b.responseTopic())
	token.WaitTimeout(time.Second)
	if token.Error() != nil {
		b.logger.Error("error unsubscribing from topics", slog.Any("error", token.Error()))
	}
	b.client.Disconnect(250)
}

// Healthy reports whether state messages arrived within the watchdog period.
func (b *Bridge) Healthy() bool {
	return b.lastMessage.Elapsed() < b.opts.Watchdog
}

func (b *Bridge) subscribe() error {
	token := b.client.SubscribeMultiple(map[string]byte{
		b.stateFilter():   0,
		b.responseTopic(): 1,
	}, func(_ mqtt.Client, msg mqtt.Message) {
		b.handleMessage(context.Background(), msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (b *Bridge) stateFilter() string {
	return b.opts.StateTopic + "/#"
}

func (b *Bridge) responseTopic() string {
	return b.opts.CommandTopic + "/response"
}

func (b *Bridge) handleMessage(ctx context.Context, topic string, payload []byte) {
	b.lastMessage.Reset()

	if topic == b.responseTopic() {
		b.handleResponse(payload)
		return
	}

	id, ok := strings.CutPrefix(topic, b.opts.StateTopic+"/")
	if !ok || id == "" || strings.Contains(id, "/") {
		b.logger.Warn("unknown topic", slog.String("topic", topic))
		return
	}
	if entity.IsOutput(id) {
		b.logger.Debug("ignoring state of owned entity", slog.String("id", id))
		return
	}
	if err := b.ingest(ctx, id, payload); err != nil {
		b.logger.Error("error when storing entity message", slog.String("id", id), slog.Any("error", err))
	}
}

// ingest writes attributes before the state so listeners triggered by the
// state see the matching attributes.
func (b *Bridge) ingest(ctx context.Context, id string, payload []byte) error {
	state, attrs := decodeState(payload)
	if len(attrs) > 0 {
		if err := entity.SetAttributes(ctx, b.store, id, attrs); err != nil {
			return err
		}
	}
	if state == nil {
		return nil
	}
	return b.store.SetState(ctx, id, b.smooth(id, *state))
}

func decodeState(payload []byte) (*string, entity.Attributes) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var p statePayload
		if err := json.Unmarshal([]byte(trimmed), &p); err == nil && (p.State != nil || p.Attributes != nil) {
			return p.State, p.Attributes
		}
	}
	return &trimmed, nil
}

func (b *Bridge) smooth(id, state string) string {
	b.smoothMu.Lock()
	defer b.smoothMu.Unlock()
	ma, ok := b.smoothers[id]
	if !ok {
		return state
	}
	v, err := strconv.ParseFloat(state, 64)
	if err != nil {
		ma.Reset()
		return state
	}
	ma.Add(v)
	return entity.FormatFloat(ma.Avg())
}

func (b *Bridge) startWatchdog() {
	if b.opts.Watchdog <= 0 {
		return
	}
	b.stopMonitorCh = make(chan struct{})
	stop := b.stopMonitorCh

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.checkTraffic()
			case <-stop:
				b.logger.Debug("stopping watchdog")
				return
			}
		}
	}()
}

func (b *Bridge) checkTraffic() {
	b.trafficMu.Lock()
	defer b.trafficMu.Unlock()
	elapsed := b.lastMessage.Elapsed()
	if elapsed >= b.opts.Watchdog {
		if b.trafficOk {
			b.logger.Warn("no incoming MQTT traffic", slog.Duration("elapsed", elapsed))
			b.trafficOk = false
		}
		return
	}
	if !b.trafficOk {
		b.logger.Info("MQTT traffic is restored")
		b.trafficOk = true
	}
}
