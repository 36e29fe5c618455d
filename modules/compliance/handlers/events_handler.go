package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/meridian-grc/meridian/modules/compliance/domain/events"
	"github.com/meridian-grc/meridian/pkg/application"
)

const (
	outcomeCreated = "created"
	outcomeUpdated = "updated"
)

type EventsHandler struct {
	log *logrus.Logger
}

func NewEventsHandler(log *logrus.Logger) *EventsHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EventsHandler{log: log}
}

// RegisterEventHandlers subscribes the compliance audit log and counters to
// the application's event bus.
func RegisterEventHandlers(app application.Application) *EventsHandler {
	h := NewEventsHandler(app.Logger())
	app.EventPublisher().Subscribe(h.OnImportCommitted)
	app.EventPublisher().Subscribe(h.OnReportVersionPublished)
	return h
}

func (h *EventsHandler) OnImportCommitted(ev *events.ImportCommittedEvent) {
	if ev == nil {
		return
	}
	importsCommitted.WithLabelValues(ev.Kind).Inc()
	importRows.WithLabelValues(ev.Kind, outcomeCreated).Add(float64(ev.Created))
	importRows.WithLabelValues(ev.Kind, outcomeUpdated).Add(float64(ev.Updated))

	h.log.WithFields(logrus.Fields{
		"event-id":      ev.EventID.String(),
		"request-id":    ev.RequestID,
		"kind":          ev.Kind,
		"rows":          ev.Rows,
		"created":       ev.Created,
		"updated":       ev.Updated,
		"areas-created": ev.AreasCreated,
	}).Info("import committed")
}

func (h *EventsHandler) OnReportVersionPublished(ev *events.ReportVersionPublishedEvent) {
	if ev == nil {
		return
	}
	reportVersionsPublished.Inc()
	h.log.WithFields(logrus.Fields{
		"event-id":   ev.EventID.String(),
		"request-id": ev.RequestID,
		"report-id":  ev.ReportID,
		"version-id": ev.VersionID.String(),
		"version":    ev.Version,
	}).Info("report version published")
}
