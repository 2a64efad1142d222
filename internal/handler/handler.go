// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package handler is the FDSNWS-facing HTTP surface: it decodes a
// GET/POST request through internal/fdsnreq, picks the per-service/format
// envelope internal/processor needs, runs the shared lifecycle, and
// renders either the merged body or the fixed error taxonomy of
// internal/httperror. internal/processor.Lifecycle.Run deliberately stops
// at classification; this is the layer that turns that classification into
// an actual net/http response.
package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eidaws/federator/internal/config"
	"github.com/eidaws/federator/internal/fdsnreq"
	"github.com/eidaws/federator/internal/httperror"
	"github.com/eidaws/federator/internal/processor"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ServiceHandler serves one FDSNWS service mount point (e.g.
// /fdsnws/dataselect/1/query), dispatching to one of several format
// variants selected by the request's "format" parameter.
type ServiceHandler struct {
	Lifecycle      *processor.Lifecycle
	Service        string // routing.ServiceName value, e.g. "station"; injected into every routing query
	Formats        map[string]processor.Format
	DefaultFormat  string
	ServiceVersion string
	DocURI         string
	NumForwarded   int
	ClientMaxSize  int64
	Log            *logrus.Entry
}

// NewServiceHandler builds a ServiceHandler for the given routing service
// name (e.g. "station", "dataselect").
func NewServiceHandler(lifecycle *processor.Lifecycle, service string, formats map[string]processor.Format, defaultFormat string, log *logrus.Entry) *ServiceHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ServiceHandler{
		Lifecycle:      lifecycle,
		Service:        service,
		Formats:        formats,
		DefaultFormat:  defaultFormat,
		ServiceVersion: "1.0.0",
		DocURI:         "https://www.fdsn.org/webservices/",
		Log:            log,
	}
}

func (h *ServiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := h.Log.WithField("request_id", requestID)
	submittedAt := time.Now().UTC()
	clientIP := config.ClientIP(r, h.NumForwarded)

	params, err := h.parse(w, r)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.writeError(w, r, httperror.New(httperror.KindBodyTooLarge, "request body too large",
				fmt.Sprintf("the request body exceeds the configured limit of %d bytes", maxBytes.Limit)), submittedAt)
			return
		}
		h.writeError(w, r, httperror.New(httperror.KindParser, "bad request", err.Error()), submittedAt)
		return
	}

	format := params.Extra["format"]
	if format == "" {
		format = h.DefaultFormat
	}
	f, ok := h.Formats[format]
	if !ok {
		h.writeError(w, r, httperror.New(httperror.KindParser, "bad request", "unsupported format: "+format), submittedAt)
		return
	}

	extra := make(map[string]string, len(params.Extra)+1)
	for k, v := range params.Extra {
		extra[k] = v
	}
	if h.Service != "" {
		extra["service"] = h.Service
	}

	req := processor.Request{
		QueryParams:  params.RawQuery,
		StreamEpochs: params.StreamEpochs,
		ExtraParams:  extra,
		DefaultEnd:   submittedAt,
		UsePOST:      params.UsePOST,
		POSTHeaders:  params.POSTHeaders,
	}

	if acceptsGzip(r) {
		if blob, hit := h.Lifecycle.CachedGzip(r.Context(), req, f); hit {
			w.Header().Set("Content-Type", contentType(f.Tag))
			w.Header().Set("Content-Encoding", "gzip")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(blob); err != nil {
				log.WithError(err).Debug("handler: write cached response failed")
			}
			return
		}
	}

	stream := &responseStream{w: w, contentType: contentType(f.Tag)}
	runErr := h.Lifecycle.Run(r.Context(), req, f, stream)
	if runErr != nil {
		if stream.started {
			// Bytes are already on the wire; the stream closes as-is.
			log.WithError(runErr).WithField("client_ip", clientIP).Warn("handler: lifecycle failed mid-stream")
			return
		}
		var herr *httperror.Error
		if errors.As(runErr, &herr) {
			h.writeError(w, r, herr, submittedAt)
		} else {
			log.WithError(runErr).WithField("client_ip", clientIP).Error("handler: lifecycle run failed")
			h.writeError(w, r, httperror.New(httperror.KindInternal, "internal error", runErr.Error()), submittedAt)
		}
		return
	}
	if !stream.started {
		w.Header().Set("Content-Type", contentType(f.Tag))
		w.WriteHeader(http.StatusOK)
	}
}

// responseStream adapts the http.ResponseWriter into the io.Writer the
// lifecycle streams into: the status line and Content-Type go out just
// before the first payload byte, and each chunk is flushed to the socket
// immediately so the client sees data while later sub-requests are still
// in flight. The lifecycle's drain mutex serializes Write calls.
type responseStream struct {
	w           http.ResponseWriter
	contentType string
	started     bool
}

func (s *responseStream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !s.started {
		s.w.Header().Set("Content-Type", s.contentType)
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	n, err := s.w.Write(p)
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

func (h *ServiceHandler) parse(w http.ResponseWriter, r *http.Request) (fdsnreq.Params, error) {
	switch r.Method {
	case http.MethodGet:
		return fdsnreq.ParseGET(r)
	case http.MethodPost:
		body := io.Reader(r.Body)
		if h.ClientMaxSize > 0 {
			body = http.MaxBytesReader(w, r.Body, h.ClientMaxSize)
		}
		defer r.Body.Close()
		params, err := fdsnreq.ParsePOST(body)
		return params, err
	default:
		return fdsnreq.Params{}, errUnsupportedMethod
	}
}

var errUnsupportedMethod = errors.New("handler: method not allowed")

// acceptsGzip reports whether the client's Accept-Encoding admits a
// gzip-encoded response body.
func acceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.SplitN(enc, ";", 2)[0]) == "gzip" {
			return true
		}
	}
	return false
}

func (h *ServiceHandler) writeError(w http.ResponseWriter, r *http.Request, herr *httperror.Error, submittedAt time.Time) {
	status := httperror.StatusCode(herr.Kind, h.Lifecycle.NoDataStatus)
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_ = httperror.WriteBody(w, status, herr, h.DocURI, r.URL.String(), h.ServiceVersion, submittedAt)
}

func contentType(formatTag string) string {
	switch formatTag {
	case "station-xml":
		return "application/xml"
	case "station-text", "availability-text":
		return "text/plain; charset=utf-8"
	case "availability-geocsv":
		return "text/csv; charset=utf-8"
	case "availability-json", "wfcatalog":
		return "application/json"
	case "dataselect":
		return "application/vnd.fdsn.mseed"
	default:
		return "application/octet-stream"
	}
}
