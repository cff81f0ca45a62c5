// Package httpapi is the client for the hosted backend REST surface. Every
// call normalizes transport, protocol, and decode trouble into plain error
// values; callers only ever branch on the returned error.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fog-control/internal/devapi"
	"fog-control/internal/model"
)

type Config struct {
	BaseURL string // e.g. http://localhost:8000/api
	UserID  string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	base   string
	userID string
	apiKey string
	hc     *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		userID: cfg.UserID,
		apiKey: cfg.APIKey,
		hc:     &http.Client{Timeout: cfg.Timeout, Transport: tr},
	}
}

// detail is the backend's error body shape.
type detail struct {
	Detail string `json:"detail"`
}

// do performs one request and decodes a 2xx JSON body into out.
// Non-2xx responses surface the backend detail message when one is present.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", "fog-control/core")
	if c.apiKey != "" {
		req.Header.Set("authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("backend read: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", strings.TrimSpace(detailOf(b, resp)), devapi.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend: %s", detailOf(b, resp))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("backend decode: %w", err)
	}
	return nil
}

func detailOf(b []byte, resp *http.Response) string {
	var d detail
	if json.Unmarshal(b, &d) == nil && d.Detail != "" {
		return d.Detail
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// statusBody is the backend device-status shape (tank math done server-side
// from the ultrasonic distance reading).
type statusBody struct {
	DeviceID      string    `json:"device_id"`
	LastUpdate    time.Time `json:"last_update"`
	WaterVolumeL  float64   `json:"water_volume_l"`
	TankCapacityL float64   `json:"tank_capacity_l"`
	PercentFull   float64   `json:"percent_full"`
	DistanceCM    float64   `json:"distance_cm"`
	WaterHeightCM float64   `json:"water_height_cm"`
	Humidity      *float64  `json:"humidity"`
	TemperatureC  *float64  `json:"temperature_c"`
}

// DeviceStatus fetches GET /devices/status/?device_id=<id>.
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (*model.DeviceStatus, error) {
	var body statusBody
	q := "/devices/status/?device_id=" + url.QueryEscape(deviceID)
	if err := c.do(ctx, http.MethodGet, q, nil, &body); err != nil {
		return nil, err
	}
	st := &model.DeviceStatus{
		DeviceID:      body.DeviceID,
		LastUpdate:    body.LastUpdate,
		WaterVolumeL:  body.WaterVolumeL,
		TankCapacityL: body.TankCapacityL,
		PercentFull:   body.PercentFull,
	}
	if body.Humidity != nil {
		st.HumidityPercent = *body.Humidity
	}
	if body.TemperatureC != nil {
		st.TemperatureC = *body.TemperatureC
	}
	return st, nil
}

// Reading is the latest raw sensor sample for a device.
type Reading struct {
	DeviceID     string    `json:"device_id"`
	RecordedAt   time.Time `json:"recorded_at"`
	DistanceCM   *float64  `json:"distance_cm"`
	WaterLevel   *float64  `json:"water_level"`
	Humidity     *float64  `json:"humidity"`
	Temperature  *float64  `json:"temperature"`
	SoilMoisture *float64  `json:"soil_moisture"`
}

// LatestReading fetches GET /readings/latest/?device_id=<id>.
func (c *Client) LatestReading(ctx context.Context, deviceID string) (*Reading, error) {
	var r Reading
	q := "/readings/latest/?device_id=" + url.QueryEscape(deviceID)
	if err := c.do(ctx, http.MethodGet, q, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Chat posts the running conversation to POST /ai/chat/.
func (c *Client) Chat(ctx context.Context, messages []model.ChatMessage) (*model.ChatReply, error) {
	req := map[string]any{"user_id": c.userID, "messages": messages}
	var reply model.ChatReply
	if err := c.do(ctx, http.MethodPost, "/ai/chat/", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// GeneratePlan requests a fresh water plan via POST /plans/generate/.
func (c *Client) GeneratePlan(ctx context.Context, horizonDays int) (*model.Plan, error) {
	if horizonDays <= 0 {
		horizonDays = 7
	}
	req := map[string]any{"user_id": c.userID, "horizon_days": horizonDays}
	var p model.Plan
	if err := c.do(ctx, http.MethodPost, "/plans/generate/", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ActivePlan fetches GET /plans/active/?user_id=<id>. A backend 404 comes
// back as the distinguished "no active plan found" failure.
func (c *Client) ActivePlan(ctx context.Context) (*model.Plan, error) {
	var p model.Plan
	q := "/plans/active/?user_id=" + url.QueryEscape(c.userID)
	if err := c.do(ctx, http.MethodGet, q, nil, &p); err != nil {
		if errors.Is(err, devapi.ErrNotFound) {
			return nil, fmt.Errorf("no active plan found: %w", devapi.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}
