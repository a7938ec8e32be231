package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_frames_received_total",
		Help: "Frames decoded from upstream cameras, per source.",
	}, []string{"source"})

	sourceOnline = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_source_online",
		Help: "Whether a source is currently online (1) or offline (0).",
	}, []string{"source"})

	mixerFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_mixer_frames_total",
		Help: "Frames emitted by the mixer output clock.",
	})

	streamClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_clients",
		Help: "Currently connected multipart stream clients, per endpoint.",
	}, []string{"endpoint"})
)

func fmtID(id int) string { return strconv.Itoa(id) }
