package gps

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nmeatap",
		Name:      "lines_read_total",
		Help:      "Raw lines read from the GPS port.",
	})
	sentencesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nmeatap",
		Name:      "sentences_decoded_total",
		Help:      "Sentences decoded, by NMEA data type.",
	}, []string{"type"})
	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nmeatap",
		Name:      "decode_failures_total",
		Help:      "Lines that could not be decoded.",
	})
	handlerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nmeatap",
		Name:      "handler_failures_total",
		Help:      "Subscriber invocations that returned an error or panicked.",
	})
	readErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nmeatap",
		Name:      "read_errors_total",
		Help:      "Non-fatal read errors on the GPS port.",
	})
)
