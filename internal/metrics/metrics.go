package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPSentTotal counts issued codes. mode: "production" or "fallback".
	OTPSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_sent_total",
		Help: "Total number of OTPs issued.",
	}, []string{"mode"})

	// OTPVerificationsTotal counts verify outcomes, e.g. "success", "expired", "invalid_code".
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verifications_total",
		Help: "Total number of OTP verification attempts by result.",
	}, []string{"result"})

	OTPEmailFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otp_email_failures_total",
		Help: "Total number of OTP emails that could not be delivered.",
	})
)
