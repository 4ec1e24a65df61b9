// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package http is the HTTP ingress: a single endpoint accepting the wire
// JSON payload a field modem uploads (optional call[]/pdu[]/sms[] arrays
// plus a mandatory token), translating each element into a
// processor.Record and handing it to the Processor one record at a time.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smsgwd/smsgwd/codec"
	"github.com/smsgwd/smsgwd/processor"
)

const msToNs = int64(1000000)

// wirePayload is the top-level upload body.
type wirePayload struct {
	Token string     `json:"token"`
	Call  []wireCall `json:"call"`
	Pdu   []wirePdu  `json:"pdu"`
	Sms   []wireSms  `json:"sms"`
}

type wireCall struct {
	Timestamp int64  `json:"timestamp"`
	Duration  int64  `json:"duration"`
	Type      string `json:"type"`
	Peer      string `json:"peer"`
	Raw       string `json:"raw"`
}

type wirePdu struct {
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	Pdu       string `json:"pdu"`
}

// wireSms is the legacy textual form: always an incoming message, its
// sent/received fields uploaded in milliseconds rather than the newer
// pdu[] branch's nanoseconds.
type wireSms struct {
	Sent     int64  `json:"sent"`
	Received int64  `json:"received"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// MakeHandler returns the HTTP handler for the ingress endpoint, plus
// /health and /metrics.
func MakeHandler(svc processor.Service, logger *slog.Logger) http.Handler {
	mux := chi.NewRouter()

	mux.Post("/", uploadHandler(svc, logger))
	mux.Get("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"pass"}`))
}

func uploadHandler(svc processor.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload wirePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		uploaded := time.Now().UnixNano()
		good := true

		for _, c := range payload.Call {
			if _, err := svc.Receive(ctx, payload.Token, processor.CallRecord{
				Timestamp: c.Timestamp,
				Uploaded:  uploaded,
				Peer:      c.Peer,
				Duration:  c.Duration,
				Type:      c.Type,
				Raw:       c.Raw,
			}); err != nil {
				if err == processor.ErrConfigMissing {
					http.Error(w, "unrecognized token", http.StatusForbidden)
					return
				}
				logger.Warn("ingress: call record rejected", "error", err)
				good = false
			}
		}

		for _, p := range payload.Pdu {
			direction, ok := parseDirection(p.Type)
			if !ok {
				good = false
				continue
			}
			if _, err := svc.Receive(ctx, payload.Token, processor.PDURecord{
				Timestamp: p.Timestamp,
				Uploaded:  uploaded,
				Direction: direction,
				Hex:       p.Pdu,
			}); err != nil {
				if err == processor.ErrConfigMissing {
					http.Error(w, "unrecognized token", http.StatusForbidden)
					return
				}
				logger.Warn("ingress: pdu record rejected", "error", err)
				good = false
			}
		}

		for _, s := range payload.Sms {
			if _, err := svc.Receive(ctx, payload.Token, processor.SmsRecord{
				Direction: codec.Incoming,
				Sent:      s.Sent * msToNs,
				Received:  s.Received * msToNs,
				Peer:      s.From,
				Subject:   s.Subject,
				Body:      s.Body,
			}); err != nil {
				if err == processor.ErrConfigMissing {
					http.Error(w, "unrecognized token", http.StatusForbidden)
					return
				}
				logger.Warn("ingress: sms record rejected", "error", err)
				good = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !good {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ret":1}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ret":0}`))
	}
}

func parseDirection(t string) (codec.Direction, bool) {
	switch t {
	case "Incoming":
		return codec.Incoming, true
	case "Outgoing":
		return codec.Outgoing, true
	default:
		return 0, false
	}
}
