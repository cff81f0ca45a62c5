package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	backendapi "fog-control/internal/backend/httpapi"
	"fog-control/internal/bus/embeddednats"
	"fog-control/internal/bus/natsjs"
	"fog-control/internal/config"
	"fog-control/internal/core/devstate"
	"fog-control/internal/core/uistate"
	"fog-control/internal/core/webui"
	"fog-control/internal/devapi"
	"fog-control/internal/devapi/mock"
	"fog-control/internal/events"
	"fog-control/internal/ingest/mqttingest"
	"fog-control/internal/logging"
	"fog-control/internal/model"
	"fog-control/internal/plan"
	"fog-control/internal/secrets"
	"fog-control/internal/settings"
	"fog-control/internal/storage/readinglog"
	"fog-control/internal/version"
)

func respond(w http.ResponseWriter, data any) {
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(devapi.OK(data))
}

func respondErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(devapi.Fail(msg))
}

// respondResult maps an (value, error) pair onto the response envelope.
func respondResult(w http.ResponseWriter, data any, err error) {
	if err == nil {
		respond(w, data)
		return
	}
	code := http.StatusBadGateway
	if errors.Is(err, devapi.ErrNotFound) {
		code = http.StatusNotFound
	}
	respondErr(w, code, err.Error())
}

// parseHistoryTime accepts RFC3339 or a bare date. Bare end dates extend to
// the end of that day so the bound stays inclusive.
func parseHistoryTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func main() {
	// .env is optional; real deployments configure via data/settings.json.
	_ = godotenv.Load()

	envCfg := config.FromEnv()

	log, err := logging.New(logging.Config{Level: firstOf(envCfg.LogLevel, "info")})
	if err != nil {
		panic(err)
	}
	startedAt := time.Now()
	defer func() { _ = log.Sync() }()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgStore, err := settings.Open("data")
	if err != nil {
		log.Fatal("settings open", zap.Error(err))
	}
	sec, err := secrets.Open("data")
	if err != nil {
		log.Fatal("secrets open", zap.Error(err))
	}
	// Env overrides for containerized runs.
	if envCfg.APIBaseURL != "" || envCfg.HTTPAddr != "" || envCfg.NATSURL != "" || envCfg.MQTTBroker != "" {
		_ = cfgStore.Patch(func(s *settings.Settings) {
			if envCfg.APIBaseURL != "" {
				s.Backend.BaseURL = envCfg.APIBaseURL
			}
			if envCfg.HTTPAddr != "" {
				s.HTTPAddr = envCfg.HTTPAddr
			}
			if envCfg.NATSURL != "" {
				s.NATSURL = envCfg.NATSURL
			}
			if envCfg.MQTTBroker != "" {
				s.MQTT.Broker = envCfg.MQTTBroker
			}
		})
	}
	cfg := cfgStore.Get()

	readings, err := readinglog.Open("data")
	if err != nil {
		log.Fatal("reading log open", zap.Error(err))
	}

	// Embedded NATS (optional) must be up before any client connects.
	var embMu sync.Mutex
	var emb *embeddednats.Server
	startEmbedded := func(s settings.Settings) {
		embMu.Lock()
		defer embMu.Unlock()
		if emb != nil {
			emb.Shutdown()
			emb = nil
		}
		if !s.EmbeddedNATS.Enabled {
			return
		}
		server, err := embeddednats.Start(embeddednats.Config{
			Host:     s.EmbeddedNATS.Host,
			Port:     s.EmbeddedNATS.Port,
			HTTPPort: s.EmbeddedNATS.HTTPPort,
			StoreDir: s.EmbeddedNATS.StoreDir,
		})
		if err != nil {
			log.Warn("embedded nats start failed", zap.Error(err))
			return
		}
		emb = server
		log.Info("embedded nats started",
			zap.String("host", s.EmbeddedNATS.Host),
			zap.Int("port", s.EmbeddedNATS.Port),
		)
	}
	startEmbedded(cfg)

	schema, err := events.LoadSchema()
	if err != nil {
		log.Fatal("load proto schema", zap.Error(err))
	}

	// Device API: mock by default, backend bridge once a base URL is set.
	mockAPI := mock.New()
	var api devapi.API = mockAPI
	var backend *backendapi.Client
	if cfg.Backend.BaseURL != "" {
		apiKey, err := sec.DecryptString(cfg.Backend.APIKeyEnc)
		if err != nil {
			log.Warn("backend api key decrypt failed", zap.Error(err))
		}
		backend = backendapi.New(backendapi.Config{
			BaseURL: cfg.Backend.BaseURL,
			UserID:  cfg.Backend.UserID,
			APIKey:  apiKey,
			Timeout: cfg.Backend.Timeout,
		})
		api = backendapi.NewBridge(backend, mockAPI)
		log.Info("backend configured", zap.String("base_url", cfg.Backend.BaseURL))
	} else {
		log.Info("no backend configured; running on mock api")
	}

	store := devstate.NewStore(api, log)
	ui := uistate.NewStore()

	// NATS is optional at runtime: core must start even if the bus is down.
	var natsMu sync.RWMutex
	var natsClient *natsjs.Client
	var natsConnected atomic.Bool
	var natsLastErr atomic.Value // string

	publishSensor := func(u model.SensorUpdate, source string) {
		if !natsConnected.Load() {
			return
		}
		natsMu.RLock()
		c := natsClient
		natsMu.RUnlock()
		if c == nil {
			return
		}

		env := schema.NewEnvelope(events.SensorObserved)
		env.SetFieldByName("device_id", u.DeviceID)
		so := dynamic.NewMessage(schema.SensorObserved)
		so.SetFieldByName("device_id", u.DeviceID)
		so.SetFieldByName("source", source)
		so.SetFieldByName("water_volume_l", u.WaterVolumeL)
		so.SetFieldByName("humidity_percent", u.HumidityPercent)
		so.SetFieldByName("temperature_c", u.TemperatureC)
		env.SetFieldByName("sensor_observed", so)
		if b, err := events.Marshal(env); err == nil {
			_ = c.Publish(context.Background(), events.SensorObserved, b)
		}

		snap := store.Snapshot()
		if snap.Status == nil || snap.Status.DeviceID != u.DeviceID {
			return
		}
		env2 := schema.NewEnvelope(events.DeviceStateUpdated)
		env2.SetFieldByName("device_id", u.DeviceID)
		du := dynamic.NewMessage(schema.DeviceStateUpdated)
		du.SetFieldByName("device_id", u.DeviceID)
		du.SetFieldByName("water_volume_l", snap.Status.WaterVolumeL)
		du.SetFieldByName("percent_full", snap.Status.PercentFull)
		du.SetFieldByName("online", true)
		env2.SetFieldByName("device_state_updated", du)
		if b, err := events.Marshal(env2); err == nil {
			_ = c.Publish(context.Background(), events.DeviceStateUpdated, b)
		}
	}

	// handleSensorUpdate is the single entry for live telemetry (MQTT, HTTP
	// push). Local state first, then the durable log, then the bus.
	handleSensorUpdate := func(u model.SensorUpdate, source string) {
		if u.Timestamp.IsZero() {
			u.Timestamp = time.Now().UTC()
		}
		store.UpdateSensorData(u)
		if err := readings.Append(readinglog.FromUpdate(u, source)); err != nil {
			log.Warn("reading log append", zap.Error(err))
		}
		publishSensor(u, source)
	}

	reconnectCh := make(chan struct{}, 1)
	requestReconnect := func() {
		select {
		case reconnectCh <- struct{}{}:
		default:
		}
	}

	// Bus consumer: remote field gateways publish sensor.* ; apply them the
	// same way as the local MQTT path, minus re-publishing.
	startConsumer := func(c *natsjs.Client) {
		consumer, err := c.NewPullConsumer("core-sensor", events.DomainSensor+".*", 4096)
		if err != nil {
			natsLastErr.Store(err.Error())
			return
		}
		go func() {
			for natsConnected.Load() {
				select {
				case <-rootCtx.Done():
					return
				default:
				}
				msgs, err := consumer.Fetch(rootCtx, 256, 2*time.Second)
				if err != nil {
					natsLastErr.Store(err.Error())
					time.Sleep(time.Second)
					continue
				}
				for _, m := range msgs {
					env, err := events.UnmarshalEnvelope(schema, m.Data())
					if err != nil {
						_ = m.Term()
						continue
					}
					subj, _ := env.GetFieldByName("subject").(string)
					if subj != events.SensorObserved {
						_ = m.Ack()
						continue
					}
					payload, _ := env.GetFieldByName("sensor_observed").(*dynamic.Message)
					if payload == nil {
						_ = m.Term()
						continue
					}
					var u model.SensorUpdate
					if ts, ok := env.GetFieldByName("ts_unix_ms").(int64); ok {
						u.Timestamp = time.UnixMilli(ts).UTC()
					}
					u.DeviceID, _ = payload.GetFieldByName("device_id").(string)
					u.WaterVolumeL, _ = payload.GetFieldByName("water_volume_l").(float64)
					u.HumidityPercent, _ = payload.GetFieldByName("humidity_percent").(float64)
					u.TemperatureC, _ = payload.GetFieldByName("temperature_c").(float64)
					store.UpdateSensorData(u)
					if err := readings.Append(readinglog.FromUpdate(u, "bus")); err != nil {
						log.Warn("reading log append", zap.Error(err))
					}
					_ = m.Ack()
				}
			}
		}()
	}

	// Connect loop. Re-dials on failure and on explicit reconnect requests
	// (settings changes).
	go func() {
		for {
			select {
			case <-rootCtx.Done():
				natsMu.Lock()
				if natsClient != nil {
					_ = natsClient.Close()
					natsClient = nil
				}
				natsMu.Unlock()
				return
			default:
			}
			cur := cfgStore.Get()

			c, err := natsjs.Connect(natsjs.Config{
				URL:     cur.NATSURL,
				Prefix:  cur.NATSPrefix,
				Timeout: 2 * time.Second,
			})
			if err == nil {
				if e := c.EnsureStreams(); e != nil {
					_ = c.Close()
					err = e
				}
			}
			if err != nil {
				natsConnected.Store(false)
				natsLastErr.Store(err.Error())
				select {
				case <-rootCtx.Done():
					return
				case <-time.After(2 * time.Second):
				case <-reconnectCh:
				}
				continue
			}

			natsMu.Lock()
			if natsClient != nil {
				_ = natsClient.Close()
			}
			natsClient = c
			natsMu.Unlock()

			natsConnected.Store(true)
			natsLastErr.Store("")
			log.Info("nats connected", zap.String("url", cur.NATSURL))
			startConsumer(c)

			select {
			case <-rootCtx.Done():
				natsConnected.Store(false)
				natsMu.Lock()
				if natsClient != nil {
					_ = natsClient.Close()
					natsClient = nil
				}
				natsMu.Unlock()
				return
			case <-reconnectCh:
			}
			natsConnected.Store(false)
		}
	}()

	// MQTT telemetry listener (optional).
	var mqttMu sync.Mutex
	var mqttListener *mqttingest.Listener
	startMQTT := func(s settings.Settings) {
		mqttMu.Lock()
		defer mqttMu.Unlock()
		if mqttListener != nil {
			mqttListener.Close()
			mqttListener = nil
		}
		if !s.MQTT.Enabled {
			return
		}
		pass, err := sec.DecryptString(s.MQTT.PasswordEnc)
		if err != nil {
			log.Warn("mqtt password decrypt failed", zap.Error(err))
		}
		l, err := mqttingest.Start(mqttingest.Config{
			Broker:   s.MQTT.Broker,
			Port:     s.MQTT.Port,
			Topic:    s.MQTT.Topic,
			Username: s.MQTT.Username,
			Password: pass,
		}, func(deviceID string) (float64, float64) {
			t := cfgStore.Get().Tank(deviceID)
			return t.HeightCM, t.CapacityL
		}, func(u model.SensorUpdate) {
			handleSensorUpdate(u, "mqtt")
		}, log)
		if err != nil {
			log.Warn("mqtt listener start failed", zap.Error(err))
			return
		}
		mqttListener = l
	}
	startMQTT(cfg)

	// Initial device load, then poll the selected device's status.
	go store.FetchDevices(rootCtx)
	go func() {
		t := time.NewTicker(cfgStore.Get().Poll.Interval)
		defer t.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-t.C:
				store.RefreshCurrent(rootCtx)
			}
		}
	}()

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain")
		_, _ = w.Write([]byte(version.String()))
	})
	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		errStr, _ := natsLastErr.Load().(string)
		embMu.Lock()
		embOn := emb != nil
		embMu.Unlock()
		mqttMu.Lock()
		mqttOn := mqttListener != nil
		mqttMu.Unlock()
		mode := "mock"
		if backend != nil {
			mode = "live"
		}
		respond(w, map[string]any{
			"mode":           mode,
			"nats_connected": natsConnected.Load(),
			"nats_error":     errStr,
			"embedded_nats":  embOn,
			"mqtt_listener":  mqttOn,
			"last_error":     store.LastError(),
			"started_at":     startedAt.Format(time.RFC3339),
			"uptime_s":       int64(time.Since(startedAt).Seconds()),
		})
	})

	// Devices
	r.Get("/api/devices", func(w http.ResponseWriter, r *http.Request) {
		store.FetchDevices(r.Context())
		respond(w, store.Snapshot().Devices)
	})
	r.Post("/api/devices/{id}/select", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			respondErr(w, http.StatusBadRequest, "device id required")
			return
		}
		// Fan-out must outlive this request.
		store.SetCurrentDevice(rootCtx, id)
		ui.AddToast(uistate.Toast{Variant: "info", Message: "Switched to device " + id})
		respond(w, map[string]string{"current_device_id": id})
	})
	r.Get("/api/devices/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == store.CurrentDeviceID() {
			store.FetchStatus(r.Context(), id)
			if snap := store.Snapshot(); snap.Status != nil {
				respond(w, snap.Status)
				return
			}
		}
		st, err := api.DeviceStatus(r.Context(), id)
		respondResult(w, st, err)
	})
	r.Get("/api/devices/{id}/timeseries", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		rng := model.Range(r.URL.Query().Get("range"))
		if rng == "" {
			rng = ui.DateRange()
		}
		if id == store.CurrentDeviceID() {
			store.FetchTimeSeries(r.Context(), id, rng)
			if snap := store.Snapshot(); snap.TimeSeries != nil {
				respond(w, snap.TimeSeries)
				return
			}
		}
		ts, err := api.TimeSeries(r.Context(), id, rng)
		respondResult(w, ts, err)
	})

	// Schedules operate on the selected device.
	r.Get("/api/schedules", func(w http.ResponseWriter, r *http.Request) {
		store.FetchSchedules(r.Context(), store.CurrentDeviceID())
		respond(w, store.Snapshot().Schedules)
	})
	r.Post("/api/schedules", func(w http.ResponseWriter, r *http.Request) {
		var sch model.Schedule
		if err := json.NewDecoder(r.Body).Decode(&sch); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		created, err := store.CreateSchedule(r.Context(), sch)
		if err != nil {
			ui.AddToast(uistate.Toast{Variant: "error", Title: "Schedule", Message: err.Error()})
			respondResult(w, nil, err)
			return
		}
		ui.AddToast(uistate.Toast{Variant: "success", Title: "Schedule", Message: created.Name + " created"})
		respond(w, created)
	})
	r.Put("/api/schedules/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var sch model.Schedule
		if err := json.NewDecoder(r.Body).Decode(&sch); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		updated, err := store.UpdateSchedule(r.Context(), id, sch)
		if err != nil {
			ui.AddToast(uistate.Toast{Variant: "error", Title: "Schedule", Message: err.Error()})
			respondResult(w, nil, err)
			return
		}
		ui.AddToast(uistate.Toast{Variant: "success", Title: "Schedule", Message: updated.Name + " updated"})
		respond(w, updated)
	})
	r.Delete("/api/schedules/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.DeleteSchedule(r.Context(), id); err != nil {
			ui.AddToast(uistate.Toast{Variant: "error", Title: "Schedule", Message: err.Error()})
			respondResult(w, nil, err)
			return
		}
		ui.AddToast(uistate.Toast{Variant: "success", Title: "Schedule", Message: "Schedule removed"})
		respond(w, map[string]string{"id": id})
	})

	// Alerts
	r.Get("/api/alerts", func(w http.ResponseWriter, r *http.Request) {
		store.FetchAlerts(r.Context(), store.CurrentDeviceID())
		respond(w, store.Snapshot().Alerts)
	})
	r.Post("/api/alerts/{id}/acknowledge", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.AcknowledgeAlert(r.Context(), id); err != nil {
			respondResult(w, nil, err)
			return
		}
		respond(w, map[string]any{"id": id, "acknowledged": true})
	})

	// History with optional type/start/end filters.
	r.Get("/api/history", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := model.HistoryFilter{Type: q.Get("type")}
		if v := q.Get("start"); v != "" {
			t, err := parseHistoryTime(v, false)
			if err != nil {
				respondErr(w, http.StatusBadRequest, "bad start date")
				return
			}
			f.Start = t
		}
		if v := q.Get("end"); v != "" {
			t, err := parseHistoryTime(v, true)
			if err != nil {
				respondErr(w, http.StatusBadRequest, "bad end date")
				return
			}
			f.End = t
		}
		store.FetchHistory(r.Context(), store.CurrentDeviceID(), f)
		respond(w, store.Snapshot().History)
	})

	r.Get("/api/forecast", func(w http.ResponseWriter, r *http.Request) {
		store.FetchForecast(r.Context(), store.CurrentDeviceID())
		respond(w, store.Snapshot().Forecast)
	})
	r.Get("/api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		store.FetchRecommendations(r.Context(), store.CurrentDeviceID())
		respond(w, store.Snapshot().Recommendations)
	})

	// Recent raw readings from the durable log.
	r.Get("/api/readings", func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				respondErr(w, http.StatusBadRequest, "bad limit")
				return
			}
			limit = n
		}
		entries, err := readings.Tail(limit)
		if err != nil {
			respondErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		respond(w, entries)
	})

	// Live sensor push, the HTTP alternative to MQTT.
	r.Post("/api/sensor-data", func(w http.ResponseWriter, r *http.Request) {
		var u model.SensorUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if u.DeviceID == "" {
			respondErr(w, http.StatusBadRequest, "device_id required")
			return
		}
		if err := api.PostSensorData(r.Context(), u); err != nil {
			respondResult(w, nil, err)
			return
		}
		handleSensorUpdate(u, "http")
		respond(w, map[string]any{"received_at": time.Now().UTC().Format(time.RFC3339)})
	})

	// AI chat + plans need the hosted backend.
	r.Post("/api/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			respondErr(w, http.StatusServiceUnavailable, "AI backend not configured")
			return
		}
		var req struct {
			Messages []model.ChatMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if len(req.Messages) == 0 {
			respondErr(w, http.StatusBadRequest, "messages array is required")
			return
		}
		for _, m := range req.Messages {
			if m.Role == "" || strings.TrimSpace(m.Content) == "" {
				respondErr(w, http.StatusBadRequest, "each message needs role and non-empty content")
				return
			}
		}
		reply, err := backend.Chat(r.Context(), req.Messages)
		respondResult(w, reply, err)
	})
	r.Post("/api/plans/generate", func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			respondErr(w, http.StatusServiceUnavailable, "AI backend not configured")
			return
		}
		var req struct {
			HorizonDays int `json:"horizon_days"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		p, err := backend.GeneratePlan(r.Context(), req.HorizonDays)
		respondResult(w, p, err)
	})
	r.Get("/api/plans/active", func(w http.ResponseWriter, r *http.Request) {
		if backend == nil {
			respondErr(w, http.StatusServiceUnavailable, "AI backend not configured")
			return
		}
		p, err := backend.ActivePlan(r.Context())
		respondResult(w, p, err)
	})

	// Local planning summary: availability, demand, risk.
	r.Get("/api/dashboard/summary", func(w http.ResponseWriter, r *http.Request) {
		snap := store.Snapshot()
		var statuses []model.DeviceStatus
		if snap.Status != nil {
			statuses = append(statuses, *snap.Status)
		}
		respond(w, plan.Summarize(statuses, cfgStore.Get().DemandUnits, snap.Forecast))
	})

	// UI state
	r.Post("/api/ui/sidebar/toggle", func(w http.ResponseWriter, r *http.Request) {
		ui.ToggleSidebar()
		respond(w, ui.Snapshot())
	})
	r.Post("/api/ui/menu/toggle", func(w http.ResponseWriter, r *http.Request) {
		ui.ToggleMobileMenu()
		respond(w, ui.Snapshot())
	})
	r.Post("/api/ui/modal", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			respondErr(w, http.StatusBadRequest, "modal name required")
			return
		}
		ui.OpenModal(req.Name)
		respond(w, ui.Snapshot())
	})
	r.Delete("/api/ui/modal", func(w http.ResponseWriter, r *http.Request) {
		ui.CloseModal()
		respond(w, ui.Snapshot())
	})
	r.Post("/api/ui/daterange", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Range string `json:"range"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		ui.SetDateRange(model.Range(req.Range))
		respond(w, ui.Snapshot())
	})
	r.Post("/api/ui/toasts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variant    string `json:"variant"`
			Title      string `json:"title"`
			Message    string `json:"message"`
			DurationMS int64  `json:"duration_ms"`
			AutoClose  *bool  `json:"auto_close"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		t := uistate.Toast{
			Variant:  req.Variant,
			Title:    req.Title,
			Message:  req.Message,
			Duration: time.Duration(req.DurationMS) * time.Millisecond,
		}
		if req.AutoClose != nil && !*req.AutoClose {
			t.Sticky = true
		}
		respond(w, map[string]string{"id": ui.AddToast(t)})
	})
	r.Delete("/api/ui/toasts/{id}", func(w http.ResponseWriter, r *http.Request) {
		ui.RemoveToast(chi.URLParam(r, "id"))
		respond(w, ui.Snapshot())
	})

	// Settings
	r.Get("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		respond(w, cfgStore.Get())
	})
	r.Put("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		var s settings.Settings
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		// The settings UI never edits encrypted fields; keep them.
		prev := cfgStore.Get()
		if s.Backend.APIKeyEnc == "" {
			s.Backend.APIKeyEnc = prev.Backend.APIKeyEnc
		}
		if s.MQTT.PasswordEnc == "" {
			s.MQTT.PasswordEnc = prev.MQTT.PasswordEnc
		}
		if err := cfgStore.Update(s); err != nil {
			respondErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		cur := cfgStore.Get()
		startEmbedded(cur)
		startMQTT(cur)
		requestReconnect()
		respond(w, cur)
	})
	r.Post("/api/settings/secrets", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey       *string `json:"api_key"`
			MQTTPassword *string `json:"mqtt_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, http.StatusBadRequest, "bad json")
			return
		}
		err := cfgStore.Patch(func(s *settings.Settings) {
			if req.APIKey != nil {
				if enc, err := sec.EncryptString(*req.APIKey); err == nil {
					s.Backend.APIKeyEnc = enc
				}
			}
			if req.MQTTPassword != nil {
				if enc, err := sec.EncryptString(*req.MQTTPassword); err == nil {
					s.MQTT.PasswordEnc = enc
				}
			}
		})
		if err != nil {
			respondErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		respond(w, map[string]bool{"updated": true})
	})

	exitCh := make(chan struct{}, 1)
	r.Post("/api/admin/exit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("bye"))
		select {
		case exitCh <- struct{}{}:
		default:
		}
	})

	// SSE streams, coalesced via store subscriptions.
	streamSSE := func(event string, snapshot func() any, subscribe func(context.Context) <-chan struct{}) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			flusher, ok := w.(http.Flusher)
			if !ok {
				http.Error(w, "streaming unsupported", http.StatusBadRequest)
				return
			}
			w.Header().Set("content-type", "text/event-stream")
			w.Header().Set("cache-control", "no-cache")
			w.Header().Set("connection", "keep-alive")

			ctx := r.Context()
			ch := subscribe(ctx)

			send := func() {
				b, _ := json.Marshal(snapshot())
				_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
				flusher.Flush()
			}
			send()

			heartbeat := time.NewTicker(15 * time.Second)
			defer heartbeat.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ch:
					send()
				case <-heartbeat.C:
					_, _ = fmt.Fprint(w, "event: ping\ndata: 1\n\n")
					flusher.Flush()
				}
			}
		}
	}
	r.Get("/api/stream/state", streamSSE("state",
		func() any { return store.Snapshot() }, store.Subscribe))
	r.Get("/api/stream/ui", streamSSE("ui",
		func() any { return ui.Snapshot() }, ui.Subscribe))

	// UI (embedded)
	if uiFS, err := webui.FS(); err == nil {
		r.Handle("/*", http.FileServer(http.FS(uiFS)))
	} else {
		log.Warn("web ui disabled", zap.Error(err))
	}

	addr := cfgStore.Get().HTTPAddr
	ln, actualAddr, err := listenWithFallback(addr)
	if err != nil {
		log.Fatal("http listen", zap.String("addr", addr), zap.Error(err))
	}
	if actualAddr != addr {
		log.Warn("http addr was busy; switched", zap.String("from", addr), zap.String("to", actualAddr))
		_ = cfgStore.Patch(func(s *settings.Settings) { s.HTTPAddr = actualAddr })
	}
	srv := &http.Server{Handler: r}
	go func() {
		log.Info("core http listening", zap.String("addr", actualAddr))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http serve", zap.Error(err))
			select {
			case exitCh <- struct{}{}:
			default:
			}
		}
	}()

	select {
	case <-rootCtx.Done():
	case <-exitCh:
	}

	mqttMu.Lock()
	if mqttListener != nil {
		mqttListener.Close()
		mqttListener = nil
	}
	mqttMu.Unlock()

	natsConnected.Store(false)
	natsMu.Lock()
	if natsClient != nil {
		_ = natsClient.Close()
		natsClient = nil
	}
	natsMu.Unlock()

	embMu.Lock()
	if emb != nil {
		emb.Shutdown()
		emb = nil
	}
	embMu.Unlock()

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	_ = srv.Shutdown(ctxTimeout)
	cancel()

	_ = readings.Close()
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func listenWithFallback(addr string) (net.Listener, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		return ln, addr, nil
	}

	// Try port+1..port+20 on "address already in use" only.
	if !isAddrInUse(err) {
		return nil, "", err
	}

	host, portStr, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		if len(addr) > 0 && addr[0] == ':' {
			host = ""
			portStr = addr[1:]
		} else {
			return nil, "", err
		}
	}
	var port int
	_, _ = fmt.Sscanf(portStr, "%d", &port)
	if port == 0 {
		return nil, "", err
	}

	for i := 1; i <= 20; i++ {
		tryAddr := net.JoinHostPort(host, fmt.Sprintf("%d", port+i))
		ln, e := net.Listen("tcp", tryAddr)
		if e == nil {
			return ln, tryAddr, nil
		}
	}
	return nil, "", err
}

func isAddrInUse(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "address already in use") ||
		strings.Contains(s, "only one usage of each socket address")
}
