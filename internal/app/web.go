// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/barometer_forecaster/internal/config"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/mqtt"
	"github.com/relabs-tech/barometer_forecaster/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// fanout hands every event to each publisher in turn.
type fanout []events.Publisher

func (f fanout) Publish(e events.Event) {
	for _, p := range f {
		p.Publish(e)
	}
}

// WebServer serves the latest events as JSON and streams new ones over a
// WebSocket.
type WebServer struct {
	snap   *events.Snapshot
	bus    *events.Bus
	logger *slog.Logger
}

func NewWebServer(snap *events.Snapshot, bus *events.Bus, logger *slog.Logger) *WebServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebServer{snap: snap, bus: bus, logger: logger.With("component", "web")}
}

// Router returns the HTTP routes. Static files are served from staticDir
// when it is not empty.
func (s *WebServer) Router(staticDir string) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/forecast", s.latest(s.snap.Forecast)).Methods("GET")
	api.HandleFunc("/pressure", s.latest(s.snap.Pressure)).Methods("GET")
	api.HandleFunc("/status", s.latest(s.snap.Status)).Methods("GET")
	api.HandleFunc("/registers", s.registersHandler).Methods("GET")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/ws", s.wsHandler)

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func (s *WebServer) latest(get func() (events.Event, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		e, ok := get()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		s.writeJSON(w, e)
	}
}

func (s *WebServer) registersHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, sensors.BME280RegisterMap())
}

func (s *WebServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("json encode error", "err", err)
	}
}

// wsHandler sends the current snapshot and then every new event until the
// client goes away.
func (s *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe(16)
	defer cancel()

	for _, get := range []func() (events.Event, bool){s.snap.Status, s.snap.Pressure, s.snap.Forecast} {
		if e, ok := get(); ok {
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}

	// The reader only notices the close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read error", "err", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("websocket write error", "err", err)
				return
			}
		}
	}
}

// RunWeb serves forecaster events received over MQTT until ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	snap := &events.Snapshot{}
	bus := events.NewBus(logger)
	defer bus.Close()

	client := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientIDWeb, logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	if err := mqtt.SubscribeEvents(client, MQTTTopics(cfg), fanout{snap, bus}, logger); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewWebServer(snap, bus, logger).Router("web"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Closing the bus first ends the websocket streams.
	bus.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
