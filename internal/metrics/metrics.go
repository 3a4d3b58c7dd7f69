// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus counters for the login flow.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bulletcraft"

// Verification results.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultLocked  = "locked"
	ResultError   = "error"
)

// UserCounter reports the number of stored users.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// Metrics holds the application collectors. A nil *Metrics records nothing.
type Metrics struct {
	otpIssued     prometheus.Counter
	verifications *prometheus.CounterVec
	usersCreated  prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		otpIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "Number of one-time codes issued.",
		}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "Number of code verifications by result.",
		}, []string{"result"}),
		usersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_created_total",
			Help:      "Number of users created on first login.",
		}),
	}
}

// RegisterUserGauge adds a gauge reporting the current user count.
func RegisterUserGauge(reg prometheus.Registerer, users UserCounter) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "users",
		Help:      "Number of registered users.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := users.CountUsers(ctx)
		if err != nil {
			slog.Error("failed to count users", "error", err)
			return 0
		}
		return float64(n)
	}))
}

func (m *Metrics) OTPIssued() {
	if m == nil {
		return
	}
	m.otpIssued.Inc()
}

func (m *Metrics) Verification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) UserCreated() {
	if m == nil {
		return
	}
	m.usersCreated.Inc()
}
