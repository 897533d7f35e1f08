package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var credentialLoads = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "productfetch_credential_loads_total",
		Help: "Credential bundle loads by source and result",
	},
	[]string{"source", "result"}, // "file" | "redis", "ok" | "miss" | "error"
)
