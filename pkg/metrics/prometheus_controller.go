package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridian-grc/meridian/pkg/application"
)

const DefaultPath = "/debug/prometheus"

// PrometheusController exposes a registry in the text exposition format.
type PrometheusController struct {
	path     string
	registry Registry
}

// Registry is satisfied by *prometheus.Registry.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

type Option func(*PrometheusController)

// WithRegistry serves reg instead of the default registry.
func WithRegistry(reg Registry) Option {
	return func(c *PrometheusController) { c.registry = reg }
}

func NewPrometheusController(path string, opts ...Option) application.Controller {
	if path == "" {
		path = DefaultPath
	}
	c := &PrometheusController{path: path}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, c.handler()).Methods(http.MethodGet)
}

func (c *PrometheusController) handler() http.Handler {
	if c.registry == nil {
		return promhttp.Handler()
	}
	// Scrapes of a custom registry are counted in that registry.
	return promhttp.InstrumentMetricHandler(
		c.registry,
		promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}),
	)
}
